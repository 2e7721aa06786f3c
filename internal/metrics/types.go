// Package metrics implements the run-scoped metrics document: per-phase
// duration, per-agent retry count and last exit code, an opaque
// token-usage bag agents may report into, and a reference to the most
// recent hygiene cleanliness score. It also exposes a live Prometheus
// counter/histogram set for the same events, so a running orchestrator
// process can be scraped while a run is in flight — the metrics document
// remains the durable, replayable artifact; the Prometheus registry is a
// process-local view over the same numbers.
package metrics

import "time"

// PhaseMetrics is the recorded timing for one phase across every attempt.
type PhaseMetrics struct {
	Phase         string        `json:"phase"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt,omitempty"`
	Duration      time.Duration `json:"durationNanos"`
	AttemptCount  int           `json:"attemptCount"`
}

// AgentMetrics is the recorded retry/exit-code history for one agent
// within one phase.
type AgentMetrics struct {
	Phase      string `json:"phase"`
	AgentName  string `json:"agentName"`
	RetryCount int    `json:"retryCount"`
	LastExit   int    `json:"lastExitCode"`
}

// HygieneSnapshot is a reference to the most recently computed cleanliness
// score, carried in the metrics document so a run's final report can cite
// it without re-reading the hygiene report itself.
type HygieneSnapshot struct {
	Score       float64   `json:"score"`
	Grade       string    `json:"grade"`
	RecordedAt  time.Time `json:"recordedAt"`
	ReportPath  string    `json:"reportPath,omitempty"`
}

// Document is the full metrics document for one run, persisted at
// metrics/run-<id>.json.
type Document struct {
	RunID      string                  `json:"runId"`
	Phases     map[string]*PhaseMetrics `json:"phases"`
	Agents     map[string]*AgentMetrics `json:"agents"` // keyed by phase/agentName
	TokenUsage map[string]int64        `json:"tokenUsage,omitempty"`
	Hygiene    *HygieneSnapshot        `json:"hygiene,omitempty"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

// NewDocument returns an empty metrics document for runID.
func NewDocument(runID string) *Document {
	return &Document{
		RunID:      runID,
		Phases:     make(map[string]*PhaseMetrics),
		Agents:     make(map[string]*AgentMetrics),
		TokenUsage: make(map[string]int64),
	}
}

func agentKey(phase, agent string) string {
	return phase + "/" + agent
}
