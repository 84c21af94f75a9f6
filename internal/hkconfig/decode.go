package hkconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a mapping node into an order-preserving StepList.
// Each value is a Group if it has a `steps` key, otherwise a Step. This
// mirrors the teacher's habit of hand-rolling a small decoder rather than
// pulling in a generic ordered-map library for a single, narrow need.
func (l *StepList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("steps: expected a mapping, got %v", value.Kind)
	}

	out := make(StepList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		name := keyNode.Value
		if isGroupNode(valNode) {
			var g Group
			if err := valNode.Decode(&g); err != nil {
				return fmt.Errorf("group %q: %w", name, err)
			}
			g.Name = name
			out = append(out, StepOrGroup{Name: name, Group: &g})
			continue
		}

		var s Step
		if err := valNode.Decode(&s); err != nil {
			return fmt.Errorf("step %q: %w", name, err)
		}
		s.Name = name
		s.StageSet = hasMappingKey(valNode, "stage")
		out = append(out, StepOrGroup{Name: name, Step: &s})
	}

	*l = out
	return nil
}

// MarshalYAML re-serializes a StepList as an ordered mapping.
func (l StepList) MarshalYAML() (any, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range l {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: entry.Name}
		var valNode yaml.Node
		if entry.Group != nil {
			if err := valNode.Encode(entry.Group); err != nil {
				return nil, err
			}
		} else {
			if err := valNode.Encode(entry.Step); err != nil {
				return nil, err
			}
		}
		m.Content = append(m.Content, keyNode, &valNode)
	}
	return m, nil
}

// UnmarshalYAML decodes a mapping node into an order-preserving HookList.
func (l *HookList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("hooks: expected a mapping, got %v", value.Kind)
	}

	out := make(HookList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var h Hook
		if err := value.Content[i+1].Decode(&h); err != nil {
			return fmt.Errorf("hook %q: %w", name, err)
		}
		h.Name = name
		out = append(out, NamedHook{Name: name, Hook: &h})
	}

	*l = out
	return nil
}

// MarshalYAML re-serializes a HookList as an ordered mapping.
func (l HookList) MarshalYAML() (any, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, nh := range l {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: nh.Name}
		var valNode yaml.Node
		if err := valNode.Encode(nh.Hook); err != nil {
			return nil, err
		}
		m.Content = append(m.Content, keyNode, &valNode)
	}
	return m, nil
}

func isGroupNode(n *yaml.Node) bool {
	return hasMappingKey(n, "steps")
}

func hasMappingKey(n *yaml.Node, key string) bool {
	if n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}
