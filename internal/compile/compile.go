// SPDX-License-Identifier: AGPL-3.0-or-later

// Package compile turns a parsed config document into the fully expanded,
// fully substituted resource set the rest of the pipeline assumes it is
// handed: every recipe-kind resource replaced by its namespaced inner
// resources, every "{{params.*}}" placeholder resolved (spec.md §2,
// "config document → parser → recipe (expansion) → resolver").
package compile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/forjar-dev/forjar/internal/model"
	"github.com/forjar-dev/forjar/internal/recipe"
	"github.com/forjar-dev/forjar/internal/resolver"
)

// Load reads, validates, and fully expands the config document at path.
func Load(path string) (*model.Config, error) {
	cfg, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	return Config(cfg)
}

// Config expands recipe instances and substitutes params in place on cfg,
// returning it for convenience. On return, cfg.Resources holds only
// primitive resources in a state ready for resolver.TopoSort.
func Config(cfg *model.Config) (*model.Config, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, joinConfigErrors(errs)
	}

	if err := expandRecipes(cfg); err != nil {
		return nil, err
	}

	order, err := resolver.TopoSort(cfg.Resources, cfg.ResourceOrder)
	if err != nil {
		return nil, err
	}
	if err := resolver.SubstituteParams(cfg.Resources, order, cfg.Params); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, joinConfigErrors(errs)
	}
	return cfg, nil
}

// expandRecipes replaces every recipe-kind resource with its namespaced
// inner resources, one recipe instance at a time, until none remain.
// Processing the alphabetically smallest recipe id each round keeps
// expansion order deterministic when one recipe's inputs reference
// params substituted only later (recipes are expanded before the
// template pass runs).
func expandRecipes(cfg *model.Config) error {
	for {
		recipeID := firstRecipeID(cfg)
		if recipeID == "" {
			break
		}
		site := cfg.Resources[recipeID]

		root, _, err := recipe.LoadWithRequires(site.RecipeSource)
		if err != nil {
			return fmt.Errorf("resources.%s: %w", recipeID, err)
		}
		resolvedInputs, err := recipe.ResolveInputs(root.Inputs, site.Inputs)
		if err != nil {
			return fmt.Errorf("resources.%s: %w", recipeID, err)
		}
		cfg.SecretValues = append(cfg.SecretValues, recipe.SecretValues(root.Inputs, resolvedInputs)...)
		inner, err := recipe.Expand(recipeID, root, resolvedInputs, site.Machine, site.DependsOn)
		if err != nil {
			return fmt.Errorf("resources.%s: %w", recipeID, err)
		}

		exits := exitPoints(inner)
		delete(cfg.Resources, recipeID)
		for id, r := range inner {
			cfg.Resources[id] = r
		}
		rewriteExternalRefs(cfg, recipeID, exits)
	}
	cfg.ResourceOrder = sortedIDs(cfg.Resources)
	return nil
}

// exitPoints returns the inner ids that nothing else in the bundle depends
// on: the bundle's outputs. A resource elsewhere that depended on the
// recipe instance is rewired onto all of them, the mirror image of how
// Expand wires the site's own depends_on onto the bundle's single entry
// point.
func exitPoints(inner map[string]model.Resource) []string {
	depended := make(map[string]bool, len(inner))
	for _, r := range inner {
		for _, dep := range r.DependsOn {
			if _, ok := inner[dep]; ok {
				depended[dep] = true
			}
		}
	}
	exits := make([]string, 0, len(inner))
	for id := range inner {
		if !depended[id] {
			exits = append(exits, id)
		}
	}
	sort.Strings(exits)
	return exits
}

func rewriteExternalRefs(cfg *model.Config, recipeID string, exits []string) {
	for id, r := range cfg.Resources {
		changed := false
		r.DependsOn = replaceRef(r.DependsOn, recipeID, exits, &changed)
		r.RestartOn = replaceRef(r.RestartOn, recipeID, exits, &changed)
		if changed {
			cfg.Resources[id] = r
		}
	}
}

func replaceRef(refs []string, target string, repl []string, changed *bool) []string {
	if refs == nil {
		return refs
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref != target {
			out = append(out, ref)
			continue
		}
		*changed = true
		out = append(out, repl...)
	}
	return out
}

func firstRecipeID(cfg *model.Config) string {
	for _, id := range sortedIDs(cfg.Resources) {
		if cfg.Resources[id].Type == model.KindRecipe {
			return id
		}
	}
	return ""
}

func sortedIDs(resources map[string]model.Resource) []string {
	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func joinConfigErrors(errs []*model.ConfigError) error {
	wrapped := make([]error, len(errs))
	for i, e := range errs {
		wrapped[i] = e
	}
	return errors.Join(wrapped...)
}
