// SPDX-License-Identifier: AGPL-3.0-or-later

package recipe

import "path/filepath"

// LoadWithRequires loads the recipe at path along with every recipe it
// (transitively) requires, depth-first, deduplicated by absolute path. A
// recipe reachable from itself via "requires" is a RecipeCycle.
func LoadWithRequires(path string) (*Doc, map[string]*Doc, error) {
	loaded := map[string]*Doc{}
	onStack := map[string]bool{}

	var visit func(p string) (*Doc, error)
	visit = func(p string) (*Doc, error) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, &Error{Kind: RecipeNotFound, Path: p, Msg: err.Error()}
		}
		if onStack[abs] {
			return nil, &Error{Kind: RecipeCycle, Path: abs, Msg: "recipe requires itself transitively"}
		}
		if d, ok := loaded[abs]; ok {
			return d, nil
		}

		d, err := Load(p)
		if err != nil {
			return nil, err
		}
		onStack[abs] = true
		defer delete(onStack, abs)

		dir := filepath.Dir(abs)
		for _, req := range d.Requires {
			reqPath := req
			if !filepath.IsAbs(reqPath) {
				reqPath = filepath.Join(dir, reqPath)
			}
			if _, err := visit(reqPath); err != nil {
				return nil, err
			}
		}

		loaded[abs] = d
		return d, nil
	}

	root, err := visit(path)
	if err != nil {
		return nil, nil, err
	}
	return root, loaded, nil
}
