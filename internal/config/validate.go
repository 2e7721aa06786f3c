package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate performs the field-level checks that a struct tag can express
// (non-empty name, non-negative timeout, executor-kind enum membership).
// One shared instance — the package never mutates it after init, matching
// the validator library's own recommendation to reuse a single instance.
var validate = validator.New()

// buildProfile validates a decoded document and produces a resolved
// Profile. Field-level checks run through the struct-tag validator first;
// cross-field checks that tags cannot express (duplicate names, dangling
// agent references) are hand-rolled.
func buildProfile(name string, doc document) (*Profile, error) {
	if len(doc.Workflow.Phases) == 0 {
		return nil, fmt.Errorf("config: profile %q: at least one phase is required", name)
	}

	seenPhase := make(map[string]bool, len(doc.Workflow.Phases))
	for i := range doc.Workflow.Phases {
		p := &doc.Workflow.Phases[i]
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("config: profile %q: phase %q: %w", name, p.Name, err)
		}
		if seenPhase[p.Name] {
			return nil, fmt.Errorf("config: profile %q: duplicate phase name %q", name, p.Name)
		}
		seenPhase[p.Name] = true
	}

	for agentName, spec := range doc.Subagents {
		if err := validate.Struct(&spec); err != nil {
			return nil, fmt.Errorf("config: profile %q: agent %q: %w", name, agentName, err)
		}
		if spec.Executor != ExecutorInSession && len(spec.Command) == 0 {
			return nil, fmt.Errorf("config: profile %q: agent %q: command is required for executor %q", name, agentName, spec.Executor)
		}
	}

	profile := &Profile{
		Name:              name,
		Phases:            []PhaseSpec(doc.Workflow.Phases),
		Agents:            map[string]AgentSpec(doc.Subagents),
		MaxParallelAgents: doc.Workflow.MaxParallelAgents,
	}

	// Cross-field: every agent a phase names must be declared.
	for _, phase := range profile.Phases {
		if _, err := profile.AgentsFor(phase); err != nil {
			return nil, err
		}
	}

	return profile, nil
}

var slugNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateProjectSlug checks that a client-slug metadata value matches the
// configured pattern. An empty pattern accepts any well-formed slug.
func ValidateProjectSlug(pattern, slug string) error {
	if pattern == "" {
		if slug != "" && !slugNameRe.MatchString(slug) {
			return fmt.Errorf("config: client slug %q is not a valid identifier", slug)
		}
		return nil
	}
	anchored := pattern
	if !strings.HasPrefix(anchored, "^") {
		anchored = "^(?:" + anchored + ")$"
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		return fmt.Errorf("config: invalid slug pattern %q: %w", pattern, err)
	}
	if !re.MatchString(slug) {
		return fmt.Errorf("config: client slug %q does not match pattern %q", slug, pattern)
	}
	return nil
}
