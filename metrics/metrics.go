// Package metrics provides Prometheus collectors for agent runs.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	r := runner.New(func(o *runner.Options) { o.Metrics = metrics.New(reg) })
//
// All recording methods are safe on a nil *Metrics, so instrumented code
// never needs to check whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run status label values.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusError       = "error"
)

// Metrics bundles the collectors recorded by the runner.
type Metrics struct {
	// Runs counts finished runs.
	// Labels: status (completed|interrupted|error)
	Runs *prometheus.CounterVec

	// Turns counts model turns per agent.
	// Labels: agent
	Turns *prometheus.CounterVec

	// ModelDuration measures model call latency in seconds.
	// Labels: agent
	ModelDuration *prometheus.HistogramVec

	// ToolCalls counts tool executions.
	// Labels: tool, status (success|error)
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// GuardrailTrips counts triggered tripwires.
	// Labels: kind (input|output), guardrail
	GuardrailTrips *prometheus.CounterVec

	// Handoffs counts control transfers.
	// Labels: from, to
	Handoffs *prometheus.CounterVec

	// Interruptions counts tool calls suspended for approval.
	// Labels: tool
	Interruptions *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrelay_runs_total",
				Help: "Total number of runs by final status",
			},
			[]string{"status"},
		),

		Turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrelay_turns_total",
				Help: "Total number of model turns by agent",
			},
			[]string{"agent"},
		),

		ModelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrelay_model_duration_seconds",
				Help:    "Duration of model calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"agent"},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrelay_tool_calls_total",
				Help: "Total number of tool calls by tool and status",
			},
			[]string{"tool", "status"},
		),

		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrelay_tool_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),

		GuardrailTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrelay_guardrail_trips_total",
				Help: "Total number of triggered guardrail tripwires",
			},
			[]string{"kind", "guardrail"},
		),

		Handoffs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrelay_handoffs_total",
				Help: "Total number of handoffs between agents",
			},
			[]string{"from", "to"},
		),

		Interruptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrelay_interruptions_total",
				Help: "Total number of tool calls suspended for approval",
			},
			[]string{"tool"},
		),
	}
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}

// RecordTurn counts a model turn and its latency.
func (m *Metrics) RecordTurn(agent string, modelDuration time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(agent).Inc()
	m.ModelDuration.WithLabelValues(agent).Observe(modelDuration.Seconds())
}

// RecordToolCall counts one tool execution.
func (m *Metrics) RecordToolCall(tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordGuardrailTrip counts a triggered tripwire.
func (m *Metrics) RecordGuardrailTrip(kind, guardrail string) {
	if m == nil {
		return
	}
	m.GuardrailTrips.WithLabelValues(kind, guardrail).Inc()
}

// RecordHandoff counts a control transfer.
func (m *Metrics) RecordHandoff(from, to string) {
	if m == nil {
		return
	}
	m.Handoffs.WithLabelValues(from, to).Inc()
}

// RecordInterruption counts a tool call awaiting approval.
func (m *Metrics) RecordInterruption(tool string) {
	if m == nil {
		return
	}
	m.Interruptions.WithLabelValues(tool).Inc()
}
