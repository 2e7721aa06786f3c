// Package config loads and validates workflow configuration documents: the
// declarative phases/agents document described in the system's external
// interfaces, keyed by profile name.
package config

import "fmt"

// ExecutorKind names the tagged variant of agent executor.
type ExecutorKind string

const (
	ExecutorSubprocess ExecutorKind = "subprocess"
	ExecutorLLM        ExecutorKind = "llm"
	ExecutorInSession  ExecutorKind = "in-session"
)

// RetryPolicy controls retry attempts and exponential backoff for an agent
// invocation or, when an agent does not declare its own, a phase default.
type RetryPolicy struct {
	MaxAttempts     int `yaml:"maxAttempts" validate:"gte=0"`
	BackoffBaseMs   int `yaml:"backoffBaseMs" validate:"gte=0"`
	BackoffJitterMs int `yaml:"backoffJitterMs" validate:"gte=0"`
}

// defaultRetryPolicy is applied when neither the agent nor the phase
// declares one: a single attempt, no backoff.
func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// PhaseSpec is a declared phase: a name, required flag, ordered agent
// names, parallel/consensus flags, and a retry policy override.
type PhaseSpec struct {
	Name              string       `yaml:"-" validate:"required"`
	Required          bool         `yaml:"required"`
	Parallel          bool         `yaml:"parallel"`
	ConsensusRequired bool         `yaml:"consensusRequired"`
	Agents            []string     `yaml:"agents" validate:"required,min=1"`
	Retry             *RetryPolicy `yaml:"retry"`
	TimeoutSeconds    int          `yaml:"timeoutSeconds" validate:"gte=0"`
}

// AgentSpec is a declared agent: a name, executor kind, invocation command,
// checkpoint artifact patterns, and optional retry/timeout overrides.
// Command is the argv used to invoke the agent for the subprocess and llm
// executor kinds (llm is dispatched as a subprocess per the executor's
// tagged-variant design — the core does not itself speak to any LLM API);
// it is ignored for in-session agents, which never spawn a process.
type AgentSpec struct {
	Name                string       `yaml:"-" validate:"required"`
	Executor            ExecutorKind `yaml:"executor" validate:"required,oneof=subprocess llm in-session"`
	Command             []string     `yaml:"command"`
	CheckpointArtifacts []string     `yaml:"checkpointArtifacts"`
	Retry               *RetryPolicy `yaml:"retry"`
	TimeoutSeconds      int          `yaml:"timeoutSeconds" validate:"gte=0"`
}

// EffectiveRetry returns the agent's own retry policy if declared; otherwise
// the phase's retry policy; otherwise the package default. The agent-level
// policy is authoritative — the phase-level policy applies only to agents
// that do not declare their own.
func EffectiveRetry(agent AgentSpec, phase PhaseSpec) RetryPolicy {
	if agent.Retry != nil {
		return *agent.Retry
	}
	if phase.Retry != nil {
		return *phase.Retry
	}
	return defaultRetryPolicy()
}

// EffectiveTimeoutSeconds returns the agent's own timeout if set, else the
// phase's timeout, else 0 (no timeout).
func EffectiveTimeoutSeconds(agent AgentSpec, phase PhaseSpec) int {
	if agent.TimeoutSeconds > 0 {
		return agent.TimeoutSeconds
	}
	return phase.TimeoutSeconds
}

// defaultMaxParallelAgents applies when a workflow document does not
// declare workflow.maxParallelAgents.
const defaultMaxParallelAgents = 4

// Profile is a fully resolved, validated workflow: its declared phase order
// (the canonical phase order), the agent registry it references, and the
// global cap on simultaneously in-flight agent invocations.
type Profile struct {
	Name              string
	Phases            []PhaseSpec
	Agents            map[string]AgentSpec
	MaxParallelAgents int
}

// PhaseIndex returns the index of the named phase, or -1 if not declared.
func (p *Profile) PhaseIndex(name string) int {
	for i := range p.Phases {
		if p.Phases[i].Name == name {
			return i
		}
	}
	return -1
}

// Phase returns the declared phase by name.
func (p *Profile) Phase(name string) (PhaseSpec, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return PhaseSpec{}, false
}

// WorkerCap resolves the worker-pool capacity for a parallel phase
// dispatch: min(config.maxParallelAgents, cliOverride?). An override of 0
// or less means "no override."
func (p *Profile) WorkerCap(cliOverride int) int {
	n := p.MaxParallelAgents
	if n <= 0 {
		n = defaultMaxParallelAgents
	}
	if cliOverride > 0 && cliOverride < n {
		n = cliOverride
	}
	return n
}

// AgentsFor resolves the declared agent specs for a phase, in declared
// order, erroring if a phase references an agent the registry lacks.
func (p *Profile) AgentsFor(phase PhaseSpec) ([]AgentSpec, error) {
	specs := make([]AgentSpec, 0, len(phase.Agents))
	for _, name := range phase.Agents {
		spec, ok := p.Agents[name]
		if !ok {
			return nil, fmt.Errorf("config: phase %q references undeclared agent %q", phase.Name, name)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
