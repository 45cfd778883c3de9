// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recipe loads recipe documents and expands recipe instances into
// namespaced primitive resources (spec.md §4.3).
package recipe

import (
	"fmt"
	"os"

	"github.com/forjar-dev/forjar/internal/model"
	"gopkg.in/yaml.v3"
)

// InputType enumerates the typed input declarations a recipe can require.
type InputType string

const (
	InputString  InputType = "string"
	InputInteger InputType = "integer"
	InputBoolean InputType = "boolean"
	InputPath    InputType = "path"
	InputEnum    InputType = "enum"
	InputList    InputType = "list"
)

// InputSpec is one declared input of a recipe (spec.md §3, "Recipe").
type InputSpec struct {
	Type      InputType     `yaml:"type"`
	Required  bool          `yaml:"required,omitempty"`
	Default   interface{}   `yaml:"default,omitempty"`
	Min       *float64      `yaml:"min,omitempty"`
	Max       *float64      `yaml:"max,omitempty"`
	MinLength *int          `yaml:"min_length,omitempty"`
	MaxLength *int          `yaml:"max_length,omitempty"`
	Pattern   string        `yaml:"pattern,omitempty"`
	Enum      []string      `yaml:"enum,omitempty"`
	MustExist bool          `yaml:"must_exist,omitempty"`
	// Secret marks this input's resolved value for redaction: its string
	// form is scrubbed from captured stderr wherever it would otherwise
	// appear verbatim (spec.md §7, "secrets are never logged").
	Secret bool `yaml:"secret,omitempty"`
}

// Doc is a decoded recipe document (spec.md §3, "Recipe").
type Doc struct {
	Name      string                  `yaml:"name"`
	Version   string                  `yaml:"version,omitempty"`
	Inputs    map[string]InputSpec    `yaml:"inputs,omitempty"`
	Requires  []string                `yaml:"requires,omitempty"`
	Resources map[string]model.Resource `yaml:"resources"`

	// ResourceOrder preserves source order for deterministic diagnostics;
	// actual expansion order is decided by topological sort, not this.
	ResourceOrder []string `yaml:"-"`

	// path is the file path this document was loaded from, as passed to
	// Load.
	path string
}

func (d *Doc) UnmarshalYAML(value *yaml.Node) error {
	type alias struct {
		Name     string               `yaml:"name"`
		Version  string               `yaml:"version,omitempty"`
		Inputs   map[string]InputSpec `yaml:"inputs,omitempty"`
		Requires []string             `yaml:"requires,omitempty"`
	}
	var a alias
	if err := value.Decode(&a); err != nil {
		return err
	}
	d.Name = a.Name
	d.Version = a.Version
	d.Inputs = a.Inputs
	d.Requires = a.Requires
	d.Resources = map[string]model.Resource{}

	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i]
		val := value.Content[i+1]
		if key.Value != "resources" {
			continue
		}
		if val.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: recipe resources must be a mapping", val.Line)
		}
		for j := 0; j < len(val.Content); j += 2 {
			idNode := val.Content[j]
			defNode := val.Content[j+1]
			var r model.Resource
			if err := defNode.Decode(&r); err != nil {
				return fmt.Errorf("resources.%s: %w", idNode.Value, err)
			}
			r.ID = idNode.Value
			d.Resources[r.ID] = r
			d.ResourceOrder = append(d.ResourceOrder, r.ID)
		}
	}
	return nil
}

// Load decodes the recipe document at path.
func Load(path string) (*Doc, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: RecipeNotFound, Path: path, Msg: err.Error()}
	}
	var d Doc
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, &Error{Kind: RecipeNotFound, Path: path, Msg: fmt.Sprintf("decode: %v", err)}
	}
	d.path = path
	return &d, nil
}
