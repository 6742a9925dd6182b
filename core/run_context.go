package core

import (
	"context"

	"github.com/hupe1980/agentrelay/logging"
)

// RunContext carries the execution scope of one run: the cancellation
// Context, identifiers, the active agent and turn, and the caller supplied
// ambient value. The ambient value is shared read-only by instructions, tools
// and guardrails; the runtime never mutates it.
//
// A RunContext is treated as immutable once handed to user code. The runner
// derives a fresh copy per turn via ForTurn, so tools executing in parallel
// observe a stable snapshot.
type RunContext struct {
	Context   context.Context
	RunID     string
	AgentName string
	Turn      int

	value any

	*loggerAdapter
}

// NewRunContext constructs the root RunContext of a run.
func NewRunContext(ctx context.Context, runID string, value any, logger logging.Logger) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		value:         value,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Value returns the caller supplied ambient value (may be nil).
func (rc *RunContext) Value() any { return rc.value }

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// ForTurn derives a copy bound to the given agent and turn number.
func (rc *RunContext) ForTurn(agent string, turn int) *RunContext {
	c := *rc
	c.AgentName = agent
	c.Turn = turn
	return &c
}

// WithContext derives a copy bound to a different cancellation context.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := *rc
	c.Context = ctx
	return &c
}

// ContextValue returns the ambient value of rc typed as T.
func ContextValue[T any](rc *RunContext) (T, bool) {
	var zero T
	if rc == nil {
		return zero, false
	}
	v, ok := rc.value.(T)
	return v, ok
}
