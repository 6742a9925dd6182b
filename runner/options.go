package runner

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrelay/guardrail"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/metrics"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxTurns limits the number of model calls per run. <= 0 means unlimited.
	MaxTurns int
	// MaxParallelTools bounds concurrent tool executions within one batch.
	// <= 0 runs the whole batch concurrently.
	MaxParallelTools int
	// StreamBuffer sets the event buffer of streamed runs.
	StreamBuffer int
	// ManageProviders makes each run connect the remote tool providers it
	// uses and close them when the run ends. Otherwise the caller owns the
	// provider lifecycle.
	ManageProviders bool
	// Model is used by agents that do not configure their own.
	Model model.Model
	// InputGuardrails run after the starting agent's input guardrails.
	InputGuardrails []guardrail.Input
	// OutputGuardrails run after the active agent's output guardrails.
	OutputGuardrails []guardrail.Output
	// SessionStore persists conversations of runs started with
	// WithConversationID.
	SessionStore session.Store
	// Metrics records Prometheus metrics. Nil disables metrics.
	Metrics *metrics.Metrics
	// TracerProvider creates run, turn, model and tool spans. Nil uses the
	// global provider.
	TracerProvider trace.TracerProvider
	// Logger receives structured run logs.
	Logger logging.Logger
}

// RunOptions configure a single run.
type RunOptions struct {
	// Context is the ambient value exposed to instructions, tools and
	// guardrails through core.RunContext.
	Context any
	// MaxTurns overrides Options.MaxTurns for this run.
	MaxTurns int
	// ConversationID loads and persists the conversation in the SessionStore.
	ConversationID string

	contextSet bool
}

// WithContext sets the run's ambient value.
func WithContext(v any) func(o *RunOptions) {
	return func(o *RunOptions) {
		o.Context = v
		o.contextSet = true
	}
}

// WithMaxTurns overrides the turn limit for one run.
func WithMaxTurns(n int) func(o *RunOptions) {
	return func(o *RunOptions) { o.MaxTurns = n }
}

// WithConversationID binds the run to a stored conversation.
func WithConversationID(id string) func(o *RunOptions) {
	return func(o *RunOptions) { o.ConversationID = id }
}
