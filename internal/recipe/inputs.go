// SPDX-License-Identifier: AGPL-3.0-or-later

package recipe

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// ResolveInputs validates supplied against spec's declared types and
// constraints, applies defaults for unsupplied optional inputs, and
// rejects missing required inputs (spec.md §4.3).
func ResolveInputs(spec map[string]InputSpec, supplied map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(spec))

	for name, in := range spec {
		val, ok := supplied[name]
		if !ok {
			if in.Required {
				return nil, &Error{Kind: InputMissing, Input: name, Msg: "required input not supplied"}
			}
			if in.Default == nil {
				continue
			}
			val = in.Default
		}
		converted, err := validateInput(name, in, val)
		if err != nil {
			return nil, err
		}
		resolved[name] = converted
	}

	return resolved, nil
}

func validateInput(name string, in InputSpec, val interface{}) (interface{}, error) {
	switch in.Type {
	case InputString, InputPath:
		s, ok := val.(string)
		if !ok {
			return nil, &Error{Kind: InputTypeMismatch, Input: name, Msg: fmt.Sprintf("want string, got %T", val)}
		}
		if in.MinLength != nil && len(s) < *in.MinLength {
			return nil, &Error{Kind: InputOutOfRange, Input: name, Msg: fmt.Sprintf("length %d below min_length %d", len(s), *in.MinLength)}
		}
		if in.MaxLength != nil && len(s) > *in.MaxLength {
			return nil, &Error{Kind: InputOutOfRange, Input: name, Msg: fmt.Sprintf("length %d above max_length %d", len(s), *in.MaxLength)}
		}
		if in.Pattern != "" {
			re, err := regexp.Compile(in.Pattern)
			if err != nil {
				return nil, &Error{Kind: InputTypeMismatch, Input: name, Msg: fmt.Sprintf("invalid pattern: %v", err)}
			}
			if !re.MatchString(s) {
				return nil, &Error{Kind: InputOutOfRange, Input: name, Msg: fmt.Sprintf("value %q does not match pattern %q", s, in.Pattern)}
			}
		}
		if in.Type == InputPath && in.MustExist {
			if _, err := os.Stat(s); err != nil {
				return nil, &Error{Kind: InputPathNotFound, Input: name, Msg: fmt.Sprintf("path %q does not exist: %v", s, err)}
			}
		}
		return s, nil

	case InputInteger:
		n, err := toInt(val)
		if err != nil {
			return nil, &Error{Kind: InputTypeMismatch, Input: name, Msg: err.Error()}
		}
		f := float64(n)
		if in.Min != nil && f < *in.Min {
			return nil, &Error{Kind: InputOutOfRange, Input: name, Msg: fmt.Sprintf("%d below min %v", n, *in.Min)}
		}
		if in.Max != nil && f > *in.Max {
			return nil, &Error{Kind: InputOutOfRange, Input: name, Msg: fmt.Sprintf("%d above max %v", n, *in.Max)}
		}
		return n, nil

	case InputBoolean:
		b, ok := val.(bool)
		if !ok {
			return nil, &Error{Kind: InputTypeMismatch, Input: name, Msg: fmt.Sprintf("want bool, got %T", val)}
		}
		return b, nil

	case InputEnum:
		s, ok := val.(string)
		if !ok {
			return nil, &Error{Kind: InputTypeMismatch, Input: name, Msg: fmt.Sprintf("want string, got %T", val)}
		}
		for _, e := range in.Enum {
			if e == s {
				return s, nil
			}
		}
		return nil, &Error{Kind: EnumViolation, Input: name, Msg: fmt.Sprintf("value %q not in %v", s, in.Enum)}

	case InputList:
		items, ok := val.([]interface{})
		if !ok {
			return nil, &Error{Kind: InputTypeMismatch, Input: name, Msg: fmt.Sprintf("want list, got %T", val)}
		}
		if in.MinLength != nil && len(items) < *in.MinLength {
			return nil, &Error{Kind: InputOutOfRange, Input: name, Msg: fmt.Sprintf("length %d below min_length %d", len(items), *in.MinLength)}
		}
		if in.MaxLength != nil && len(items) > *in.MaxLength {
			return nil, &Error{Kind: InputOutOfRange, Input: name, Msg: fmt.Sprintf("length %d above max_length %d", len(items), *in.MaxLength)}
		}
		return items, nil

	default:
		return nil, &Error{Kind: InputTypeMismatch, Input: name, Msg: fmt.Sprintf("unknown input type %q", in.Type)}
	}
}

// SecretValues returns the resolved string values of every input spec
// declares secret. compile.expandRecipes accumulates these across every
// recipe instance onto model.Config.SecretValues, which the executor uses
// to redact captured stderr (spec.md §7).
func SecretValues(spec map[string]InputSpec, resolved map[string]interface{}) []string {
	var out []string
	for name, in := range spec {
		if !in.Secret {
			continue
		}
		if s, ok := resolved[name].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toInt(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("want integer, got %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("want integer, got %T", val)
	}
}
