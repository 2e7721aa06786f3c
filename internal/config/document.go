package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// orderedPhases preserves the YAML declaration order of the `phases`
// mapping — declaration order is the canonical phase execution order, so
// an ordinary map[string]... unmarshal (which loses order) would silently
// break that invariant. It walks the mapping node's Content pairs directly
// instead of decoding into a Go map.
type orderedPhases []PhaseSpec

func (op *orderedPhases) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("config: workflow.phases must be a mapping")
	}
	for i := 0; i < len(value.Content)-1; i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("config: workflow.phases: key at position %d is not a scalar", i/2+1)
		}
		var ps PhaseSpec
		if err := valNode.Decode(&ps); err != nil {
			return fmt.Errorf("config: workflow.phases.%s: %w", keyNode.Value, err)
		}
		ps.Name = keyNode.Value
		*op = append(*op, ps)
	}
	return nil
}

// orderedSubagents parses the `subagents` mapping. Declaration order does
// not matter for agents (only phases are ordered), but the mapping is
// still walked directly so agent names round-trip exactly as declared.
type orderedSubagents map[string]AgentSpec

func (os *orderedSubagents) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("config: subagents must be a mapping")
	}
	result := make(orderedSubagents, len(value.Content)/2)
	for i := 0; i < len(value.Content)-1; i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("config: subagents: key at position %d is not a scalar", i/2+1)
		}
		var as AgentSpec
		if err := valNode.Decode(&as); err != nil {
			return fmt.Errorf("config: subagents.%s: %w", keyNode.Value, err)
		}
		as.Name = keyNode.Value
		result[keyNode.Value] = as
	}
	*os = result
	return nil
}

// workflowDoc is the `workflow:` section of a profile document.
type workflowDoc struct {
	Phases            orderedPhases `yaml:"phases"`
	MaxParallelAgents int           `yaml:"maxParallelAgents" validate:"gte=0"`
}

// document is a single profile's YAML document.
type document struct {
	Workflow  workflowDoc      `yaml:"workflow"`
	Subagents orderedSubagents `yaml:"subagents"`
}

// profilesDocument is the top-level document shape when multiple profiles
// are declared in one file: a `profiles:` mapping of profile name to
// document. Unknown top-level keys are ignored, never an error (yaml.v3
// drops unrecognized fields silently).
type profilesDocument struct {
	Profiles map[string]document `yaml:"profiles"`
}
