package core

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/logging"
)

// ToolActions are orchestration signals a tool raised during its call. The
// runner reads them after the call settles.
type ToolActions struct {
	TransferToAgent *string
}

// ToolContext provides the constrained surface a tool implementation sees for
// one invocation: the run scope (read-only) plus an action buffer.
type ToolContext struct {
	runCtx *RunContext
	callID string

	mu      sync.Mutex
	actions ToolActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// the id of the tool call being served.
func NewToolContext(runCtx *RunContext, callID string) *ToolContext {
	return &ToolContext{
		runCtx:        runCtx,
		callID:        callID,
		loggerAdapter: newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the cancellation context of the run.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// RunID returns the run identifier.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// AgentName returns the name of the agent whose model requested the call.
func (tc *ToolContext) AgentName() string { return tc.runCtx.AgentName }

// CallID returns the id of the tool call being served.
func (tc *ToolContext) CallID() string { return tc.callID }

// Value returns the caller supplied ambient value.
func (tc *ToolContext) Value() any { return tc.runCtx.Value() }

// Logger returns the run logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// RunContext returns the parent run scope.
func (tc *ToolContext) RunContext() *RunContext { return tc.runCtx }

// TransferToAgent signals the runner to hand control to the named agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.actions.TransferToAgent = &name
	tc.LogDebug("tool.transfer.requested", "from_agent", tc.AgentName(), "to_agent", name, "call_id", tc.callID)
}

// Actions returns a snapshot of the accumulated actions.
func (tc *ToolContext) Actions() ToolActions {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.actions
}
