// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a Config document, recording source order for the
// "machines" and "resources" mappings and stamping each Machine/Resource
// with its map key as an ID (spec.md §9: multi-machine apply order is
// pinned to config-declaration order, which a plain map cannot preserve).
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: config document must be a mapping", value.Line)
	}

	type alias struct {
		Version     string            `yaml:"version"`
		Name        string            `yaml:"name"`
		Description string            `yaml:"description,omitempty"`
		Params      map[string]string `yaml:"params,omitempty"`
		Policy      *Policy           `yaml:"policy,omitempty"`
	}
	var a alias
	if err := value.Decode(&a); err != nil {
		return err
	}
	c.Version = a.Version
	c.Name = a.Name
	c.Description = a.Description
	c.Params = a.Params
	c.Policy = a.Policy
	c.Machines = map[string]Machine{}
	c.Resources = map[string]Resource{}
	c.MachineOrder = nil
	c.ResourceOrder = nil

	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i]
		val := value.Content[i+1]
		switch key.Value {
		case "machines":
			if val.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: machines must be a mapping", val.Line)
			}
			for j := 0; j < len(val.Content); j += 2 {
				idNode := val.Content[j]
				defNode := val.Content[j+1]
				var m Machine
				if err := defNode.Decode(&m); err != nil {
					return fmt.Errorf("machines.%s: %w", idNode.Value, err)
				}
				m.ID = idNode.Value
				if m.Arch == "" {
					m.Arch = DefaultArch
				}
				c.Machines[m.ID] = m
				c.MachineOrder = append(c.MachineOrder, m.ID)
			}
		case "resources":
			if val.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: resources must be a mapping", val.Line)
			}
			for j := 0; j < len(val.Content); j += 2 {
				idNode := val.Content[j]
				defNode := val.Content[j+1]
				var r Resource
				if err := defNode.Decode(&r); err != nil {
					return fmt.Errorf("resources.%s: %w", idNode.Value, err)
				}
				r.ID = idNode.Value
				if r.Type == KindRecipe {
					if err := decodeRecipeFields(defNode, &r); err != nil {
						return fmt.Errorf("resources.%s: %w", idNode.Value, err)
					}
				}
				c.Resources[r.ID] = r
				c.ResourceOrder = append(c.ResourceOrder, r.ID)
			}
		case "version", "name", "description", "params", "policy":
		default:
			return fmt.Errorf("line %d: field %s not found in type model.Config", key.Line, key.Value)
		}
	}
	return nil
}

func decodeRecipeFields(defNode *yaml.Node, r *Resource) error {
	type recipeFields struct {
		Source string                 `yaml:"source"`
		Inputs map[string]interface{} `yaml:"inputs,omitempty"`
	}
	var rf recipeFields
	if err := defNode.Decode(&rf); err != nil {
		return err
	}
	r.RecipeSource = rf.Source
	r.Inputs = rf.Inputs
	return nil
}

// UnmarshalYAML decodes a "machine" field that is either a single scalar id
// or a sequence of ids (spec.md §3, "Resource").
func (m *MachineRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		m.IDs = []string{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		m.IDs = ss
		return nil
	default:
		return fmt.Errorf("line %d: machine must be a string or a list of strings", value.Line)
	}
}

// MarshalYAML renders a MachineRef back to its shortest form: a scalar when
// it names exactly one machine, otherwise a sequence.
func (m MachineRef) MarshalYAML() (interface{}, error) {
	if len(m.IDs) == 1 {
		return m.IDs[0], nil
	}
	return m.IDs, nil
}
