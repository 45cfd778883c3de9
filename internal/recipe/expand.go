// SPDX-License-Identifier: AGPL-3.0-or-later

package recipe

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/forjar-dev/forjar/internal/graph"
	"github.com/forjar-dev/forjar/internal/model"
)

var inputPlaceholderRE = regexp.MustCompile(`\{\{\s*inputs\.([A-Za-z0-9_]+)\s*\}\}`)

// Expand instantiates doc at instanceID with the given resolved inputs,
// producing the namespaced, substituted, site-wired set of primitive
// resources described by spec.md §4.3. siteMachine and siteDependsOn are
// the instantiation site's own "machine" and "depends_on" fields. Every
// inner resource inherits siteMachine, since a recipe converges as one
// unit onto the site's target; only the external depends_on threads onto
// the bundle's single entry point in topological order.
func Expand(instanceID string, doc *Doc, resolvedInputs map[string]interface{}, siteMachine model.MachineRef, siteDependsOn []string) (map[string]model.Resource, error) {
	namespaced := make(map[string]model.Resource, len(doc.Resources))
	ns := func(id string) string { return instanceID + "/" + id }

	for id, r := range doc.Resources {
		nr := r
		nr.ID = ns(id)
		nr.Machine = siteMachine
		nr.DependsOn = rewriteRefs(r.DependsOn, doc.Resources, ns)
		nr.RestartOn = rewriteRefs(r.RestartOn, doc.Resources, ns)
		substituteInputs(&nr, resolvedInputs)
		namespaced[nr.ID] = nr
	}

	innerIDs := make([]string, 0, len(namespaced))
	for id := range namespaced {
		innerIDs = append(innerIDs, id)
	}
	order, err := graph.TopoSort(innerIDs, func(id string) []string {
		var deps []string
		for _, d := range namespaced[id].DependsOn {
			if _, ok := namespaced[d]; ok {
				deps = append(deps, d)
			}
		}
		return deps
	})
	if err != nil {
		return nil, &Error{Kind: RecipeCycle, Path: instanceID, Msg: fmt.Sprintf("internal dependency cycle: %v", err)}
	}

	if len(order) > 0 {
		first := namespaced[order[0]]
		first.DependsOn = append(append([]string{}, first.DependsOn...), siteDependsOn...)
		namespaced[order[0]] = first
	}

	return namespaced, nil
}

func rewriteRefs(refs []string, inner map[string]model.Resource, ns func(string) string) []string {
	if refs == nil {
		return nil
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		if _, isInner := inner[ref]; isInner {
			out[i] = ns(ref)
		} else {
			out[i] = ref
		}
	}
	return out
}

// substituteInputs replaces every "{{inputs.K}}" placeholder in every
// string field of r with the string form of resolved[K].
func substituteInputs(r *model.Resource, resolved map[string]interface{}) {
	v := reflect.ValueOf(r).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(substitute(field.String(), resolved))
		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				elem := field.Index(j)
				elem.SetString(substitute(elem.String(), resolved))
			}
		}
	}
}

func substitute(s string, resolved map[string]interface{}) string {
	return inputPlaceholderRE.ReplaceAllStringFunc(s, func(match string) string {
		name := inputPlaceholderRE.FindStringSubmatch(match)[1]
		val, ok := resolved[name]
		if !ok {
			return match
		}
		return formatInputValue(val)
	})
}

func formatInputValue(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatInputValue(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}
