// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resolver performs the two passes that turn a fully-expanded
// resource set into a deterministic apply order: parameter-template
// substitution, then topological sort (spec.md §4.4).
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/forjar-dev/forjar/internal/graph"
	"github.com/forjar-dev/forjar/internal/model"
)

// TemplateError reports an unresolved "{{params.K}}" placeholder.
type TemplateError struct {
	ResourceID string
	Field      string
	Param      string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("resources.%s.%s: unresolved placeholder {{params.%s}}", e.ResourceID, e.Field, e.Param)
}

// CycleDetected reports that the resource dependency graph could not be
// fully ordered.
type CycleDetected struct {
	Residual []string
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("cycle detected among resources: %s", strings.Join(e.Residual, ", "))
}

var paramPlaceholderRE = regexp.MustCompile(`\{\{\s*params\.([A-Za-z0-9_]+)\s*\}\}`)

// SubstituteParams scans each resource's kind-specific string fields and
// packages entries for "{{params.K}}" placeholders and replaces them with
// the string form of params[K]. It returns a *TemplateError on the first
// unresolved placeholder it encounters. Resources are visited in the given
// order; which of one resource's fields is checked first is not fixed.
func SubstituteParams(resources map[string]model.Resource, order []string, params map[string]string) error {
	for _, id := range order {
		r := resources[id]
		if err := substituteResource(&r, params); err != nil {
			return err
		}
		resources[id] = r
	}
	return nil
}

func substituteResource(r *model.Resource, params map[string]string) error {
	fields := map[string]*string{
		"provider": &r.Provider,
		"state":    &r.State,
		"path":     &r.Path,
		"content":  &r.Content,
		"source":   &r.Source,
		"target":   &r.Target,
		"owner":    &r.Owner,
		"group":    &r.Group,
		"mode":     &r.Mode,
		"name":     &r.Name,
		"fstype":   &r.FSType,
		"options":  &r.Options,
	}
	for name, ptr := range fields {
		sub, err := substitute(r.ID, name, *ptr, params)
		if err != nil {
			return err
		}
		*ptr = sub
	}
	for i, v := range r.Packages {
		sub, err := substitute(r.ID, fmt.Sprintf("packages[%d]", i), v, params)
		if err != nil {
			return err
		}
		r.Packages[i] = sub
	}
	return nil
}

func substitute(resourceID, field, s string, params map[string]string) (string, error) {
	var firstErr error
	out := paramPlaceholderRE.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := paramPlaceholderRE.FindStringSubmatch(match)[1]
		val, ok := params[name]
		if !ok {
			firstErr = &TemplateError{ResourceID: resourceID, Field: field, Param: name}
			return match
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// TopoSort orders resource ids so that every id appears after every id it
// depends on, tie-broken alphabetically (spec.md §4.4, "Topology pass").
func TopoSort(resources map[string]model.Resource, ids []string) ([]string, error) {
	order, err := graph.TopoSort(ids, func(id string) []string {
		return resources[id].DependsOn
	})
	if err != nil {
		cycleErr, ok := err.(*graph.CycleError)
		if !ok {
			return order, err
		}
		return order, &CycleDetected{Residual: cycleErr.Residual}
	}
	return order, nil
}
