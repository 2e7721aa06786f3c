package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Live wraps a Prometheus registry with the counters and histograms a
// running orchestrator process exposes for scraping, kept alongside (not
// instead of) the durable metrics document — the document survives process
// restarts, this registry does not.
type Live struct {
	Registry *prometheus.Registry

	phaseDuration *prometheus.HistogramVec
	agentRetries  *prometheus.CounterVec
	agentExit     *prometheus.GaugeVec
	tokenUsage    *prometheus.CounterVec
	hygieneScore  prometheus.Gauge
}

// NewLive builds a fresh Prometheus registry and registers every metric.
func NewLive() *Live {
	reg := prometheus.NewRegistry()
	l := &Live{
		Registry: reg,
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orc_phase_duration_seconds",
			Help:    "Phase execution duration in seconds, by phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		agentRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orc_agent_retries_total",
			Help: "Total agent dispatch retries, by phase and agent.",
		}, []string{"phase", "agent"}),
		agentExit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orc_agent_last_exit_code",
			Help: "Last observed exit code for an agent dispatch, by phase and agent.",
		}, []string{"phase", "agent"}),
		tokenUsage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orc_token_usage_total",
			Help: "Cumulative token usage reported by agents, by bucket key.",
		}, []string{"key"}),
		hygieneScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orc_hygiene_score",
			Help: "Most recent repository cleanliness score (0-100).",
		}),
	}
	reg.MustRegister(l.phaseDuration, l.agentRetries, l.agentExit, l.tokenUsage, l.hygieneScore)
	return l
}

// ObservePhaseDuration records one phase attempt's duration.
func (l *Live) ObservePhaseDuration(phase string, seconds float64) {
	l.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

// ObserveAgentOutcome folds one agent attempt into the retry counter and
// last-exit-code gauge.
func (l *Live) ObserveAgentOutcome(phase, agent string, retries, exitCode int) {
	if retries > 0 {
		l.agentRetries.WithLabelValues(phase, agent).Add(float64(retries))
	}
	l.agentExit.WithLabelValues(phase, agent).Set(float64(exitCode))
}

// AddTokenUsage increments the named token-usage counter.
func (l *Live) AddTokenUsage(key string, delta int64) {
	if delta <= 0 {
		return
	}
	l.tokenUsage.WithLabelValues(key).Add(float64(delta))
}

// SetHygieneScore sets the most recent cleanliness score gauge.
func (l *Live) SetHygieneScore(score float64) {
	l.hygieneScore.Set(score)
}
