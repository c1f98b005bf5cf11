package model

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

func (s *SynapseSpec) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("synapse pair must have 2 elements, got %d", len(pair))
		}
		if err := json.Unmarshal(pair[0], &s.Target); err != nil {
			return fmt.Errorf("synapse target: %w", err)
		}
		if err := json.Unmarshal(pair[1], &s.Weight); err != nil {
			return fmt.Errorf("synapse weight: %w", err)
		}
		return nil
	}

	type plain SynapseSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = SynapseSpec(p)
	return nil
}

func (s *SynapseSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: synapse pair must have 2 elements, got %d", node.Line, len(node.Content))
		}
		if err := node.Content[0].Decode(&s.Target); err != nil {
			return fmt.Errorf("line %d: synapse target: %w", node.Line, err)
		}
		if err := node.Content[1].Decode(&s.Weight); err != nil {
			return fmt.Errorf("line %d: synapse weight: %w", node.Line, err)
		}
		return nil
	}

	type plain SynapseSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = SynapseSpec(p)
	return nil
}

// UnmarshalTOML accepts the value BurntSushi/toml hands to toml.Unmarshaler.
func (s *SynapseSpec) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case []any:
		if len(v) != 2 {
			return fmt.Errorf("synapse pair must have 2 elements, got %d", len(v))
		}
		target, ok := v[0].(string)
		if !ok {
			return fmt.Errorf("synapse target must be a string, got %T", v[0])
		}
		weight, err := tomlInt(v[1])
		if err != nil {
			return err
		}
		s.Target, s.Weight = target, weight
		return nil
	case map[string]any:
		target, ok := v["target"].(string)
		if !ok {
			return fmt.Errorf("synapse target must be a string, got %T", v["target"])
		}
		weight, err := tomlInt(v["weight"])
		if err != nil {
			return err
		}
		s.Target, s.Weight = target, weight
		return nil
	default:
		return fmt.Errorf("unsupported synapse encoding %T", data)
	}
}

func tomlInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("synapse weight must be an integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("synapse weight must be an integer, got %T", v)
	}
}
