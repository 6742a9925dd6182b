// Package tool implements the tool calling subsystem: the Tool contract,
// function backed tools with schema validated arguments, the per-turn
// registry that resolves model tool calls, the synthetic transfer tools used
// for handoffs, and the Provider contract for remote tool sources.
package tool

import (
	"github.com/hupe1980/agentrelay/core"
)

// Tool is a named capability an agent's model may invoke.
//
// Implementations must be safe for concurrent use: calls of one batch run in
// parallel. Returned values must be JSON serializable.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description is shown to the model to decide when to use the tool.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// RequiresApproval reports whether a human must approve each call before
	// it executes.
	RequiresApproval() bool

	// Call executes the tool. Arguments have already been validated against
	// Parameters.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ToolError is the recoverable tool failure reported back to the model.
type ToolError = core.ToolError

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return core.NewToolError(tool, message, code)
}
