package tool

import (
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
)

// Transfer is implemented by synthetic tools that hand control to another
// agent. The runner treats a call to a Transfer tool as a handoff instead of
// an ordinary tool execution.
type Transfer interface {
	Tool
	// Target returns the name of the agent receiving control.
	Target() string
}

// transferTool requests a handoff to a fixed target agent.
type transferTool struct {
	name        string
	description string
	target      string
}

// NewTransferTool constructs the synthetic handoff tool exposing target under
// name.
func NewTransferTool(name, description, target string) Transfer {
	return &transferTool{name: name, description: description, target: target}
}

func (t *transferTool) Name() string { return t.name }

func (t *transferTool) Description() string { return t.description }

func (t *transferTool) Parameters() map[string]any { return util.EmptyObjectSchema() }

func (t *transferTool) RequiresApproval() bool { return false }

func (t *transferTool) Target() string { return t.target }

func (t *transferTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	tc.TransferToAgent(t.target)
	return map[string]any{"assistant": t.target}, nil
}
