package agent

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/tool"
)

// HandoffOptions customizes the synthetic transfer tool of a handoff.
type HandoffOptions struct {
	// ToolName overrides the default transfer_to_<snake_case(target)>.
	ToolName string
	// ToolDescription overrides the description derived from the target's
	// HandoffDescription.
	ToolDescription string
}

// Handoff declares that the owning agent may transfer control to a target
// agent. It is exposed to the model as a synthetic tool.
type Handoff struct {
	targetName string
	opts       HandoffOptions

	once    sync.Once
	resolve func() *Agent
	target  *Agent
}

// HandoffTo declares a handoff to an already constructed agent.
func HandoffTo(target *Agent, optFns ...func(o *HandoffOptions)) *Handoff {
	h := &Handoff{targetName: target.Name(), target: target}
	h.once.Do(func() {})
	return h.apply(optFns)
}

// LazyHandoff declares a handoff to an agent resolved on first use. It allows
// graphs with cycles (A hands off to B which hands back to A).
func LazyHandoff(targetName string, resolve func() *Agent, optFns ...func(o *HandoffOptions)) *Handoff {
	h := &Handoff{targetName: targetName, resolve: resolve}
	return h.apply(optFns)
}

func (h *Handoff) apply(optFns []func(o *HandoffOptions)) *Handoff {
	for _, fn := range optFns {
		fn(&h.opts)
	}
	return h
}

// TargetName returns the name of the receiving agent without resolving it.
func (h *Handoff) TargetName() string { return h.targetName }

// Target returns the receiving agent, resolving a lazy handoff on first call.
func (h *Handoff) Target() *Agent {
	h.once.Do(func() {
		if h.resolve != nil {
			h.target = h.resolve()
		}
	})
	return h.target
}

// ToolName returns the name of the synthetic transfer tool.
func (h *Handoff) ToolName() string {
	if h.opts.ToolName != "" {
		return h.opts.ToolName
	}
	return "transfer_to_" + util.SnakeCase(h.targetName)
}

// ToolDescription returns the description of the synthetic transfer tool.
func (h *Handoff) ToolDescription() string {
	if h.opts.ToolDescription != "" {
		return h.opts.ToolDescription
	}

	desc := fmt.Sprintf("Handoff to the %s agent to handle the request.", h.targetName)
	if t := h.Target(); t != nil && t.HandoffDescription() != "" {
		desc += " " + t.HandoffDescription()
	}
	return desc
}

// Tool returns the synthetic transfer tool offered to the model.
func (h *Handoff) Tool() tool.Transfer {
	return tool.NewTransferTool(h.ToolName(), h.ToolDescription(), h.targetName)
}
