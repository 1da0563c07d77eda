// Package metrics provides Prometheus-based metrics for the conversational
// core: turn routing, tool invocations, LLM rounds, and acknowledgements.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the core's Prometheus collectors. One Recorder is built at
// startup and injected wherever turns are processed.
type Recorder struct {
	turnsTotal       *prometheus.CounterVec
	toolInvocations  *prometheus.CounterVec
	llmRoundsTotal   prometheus.Counter
	runTimeoutsTotal prometheus.Counter
	acksTotal        prometheus.Counter
	turnDuration     *prometheus.HistogramVec
}

// NewRecorder registers the collectors with the default registerer.
func NewRecorder() *Recorder {
	return &Recorder{
		turnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspection_turns_total",
				Help: "Conversation turns by path (fastpath or llm) and outcome",
			},
			[]string{"path", "outcome"},
		),
		toolInvocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspection_tool_invocations_total",
				Help: "Tool registry invocations by tool name and outcome",
			},
			[]string{"tool", "outcome"},
		),
		llmRoundsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inspection_llm_tool_rounds_total",
				Help: "LLM tool-calling rounds executed",
			},
		),
		runTimeoutsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inspection_llm_run_timeouts_total",
				Help: "LLM runs that exceeded the poll ceiling",
			},
		),
		acksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inspection_acknowledgements_sent_total",
				Help: "Early acknowledgement messages sent",
			},
		),
		turnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inspection_turn_duration_seconds",
				Help:    "Turn processing duration by path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}
}

// Turn path and outcome labels.
const (
	PathFast = "fastpath"
	PathLLM  = "llm"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// All Recorder methods are no-ops on a nil receiver, so callers that run
// without metrics (tests, demo mode) can pass nil.

// Turn records one processed turn.
func (r *Recorder) Turn(path, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.turnsTotal.WithLabelValues(path, outcome).Inc()
	r.turnDuration.WithLabelValues(path).Observe(seconds)
}

// Tool records one tool invocation.
func (r *Recorder) Tool(name string, success bool) {
	if r == nil {
		return
	}
	outcome := OutcomeError
	if success {
		outcome = OutcomeOK
	}
	r.toolInvocations.WithLabelValues(name, outcome).Inc()
}

// LLMRound records one tool-calling round.
func (r *Recorder) LLMRound() {
	if r == nil {
		return
	}
	r.llmRoundsTotal.Inc()
}

// RunTimeout records one poll-ceiling timeout.
func (r *Recorder) RunTimeout() {
	if r == nil {
		return
	}
	r.runTimeoutsTotal.Inc()
}

// AckSent records one acknowledgement send.
func (r *Recorder) AckSent() {
	if r == nil {
		return
	}
	r.acksTotal.Inc()
}
