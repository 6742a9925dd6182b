package agent

import (
	"slices"

	"github.com/hupe1980/agentrelay/guardrail"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

// Options configures an Agent.
//
// Use functional options with New to override defaults.
type Options struct {
	// Instructions is the system prompt; static or computed per turn.
	Instructions Instruction
	// Model generates this agent's responses. Nil falls back to the runner's
	// default model.
	Model model.Model
	// Tools are local tools offered to the model.
	Tools []tool.Tool
	// Providers contribute remote tools, listed every turn.
	Providers []tool.Provider
	// Handoffs are the agents this agent may transfer control to.
	Handoffs []*Handoff
	// HandoffDescription tells other agents when to hand off to this one.
	HandoffDescription string
	// OutputType requests a structured final answer. Nil means plain text.
	OutputType *OutputType
	// InputGuardrails run once, before the first model call of a run that
	// starts with this agent.
	InputGuardrails []guardrail.Input
	// OutputGuardrails run on this agent's final answer.
	OutputGuardrails []guardrail.Output
	// ModelSettings are passed through to the model.
	ModelSettings model.Settings
}

// Agent is an immutable agent definition. Getters return copies.
type Agent struct {
	name string
	opts Options
}

// New creates an agent definition.
func New(name string, optFns ...func(o *Options)) *Agent {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{name: name, opts: copyOptions(opts)}
}

// Clone derives a new agent with the options of a applied first and
// optFns after. The receiver is left unchanged.
func (a *Agent) Clone(optFns ...func(o *Options)) *Agent {
	opts := copyOptions(a.opts)

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{name: a.name, opts: copyOptions(opts)}
}

// WithName derives a copy under a different name.
func (a *Agent) WithName(name string) *Agent {
	c := a.Clone()
	c.name = name
	return c
}

// Name returns the agent's unique name within its graph.
func (a *Agent) Name() string { return a.name }

// Instructions returns the agent's instruction.
func (a *Agent) Instructions() Instruction { return a.opts.Instructions }

// Model returns the configured model, or nil.
func (a *Agent) Model() model.Model { return a.opts.Model }

// Tools returns the local tools.
func (a *Agent) Tools() []tool.Tool { return slices.Clone(a.opts.Tools) }

// Providers returns the remote tool providers.
func (a *Agent) Providers() []tool.Provider { return slices.Clone(a.opts.Providers) }

// Handoffs returns the declared handoffs.
func (a *Agent) Handoffs() []*Handoff { return slices.Clone(a.opts.Handoffs) }

// HandoffDescription returns the description shown to agents handing off to a.
func (a *Agent) HandoffDescription() string { return a.opts.HandoffDescription }

// OutputType returns the structured output type, or nil for text output.
func (a *Agent) OutputType() *OutputType { return a.opts.OutputType }

// InputGuardrails returns the input guardrails.
func (a *Agent) InputGuardrails() []guardrail.Input { return slices.Clone(a.opts.InputGuardrails) }

// OutputGuardrails returns the output guardrails.
func (a *Agent) OutputGuardrails() []guardrail.Output {
	return slices.Clone(a.opts.OutputGuardrails)
}

// ModelSettings returns the model settings.
func (a *Agent) ModelSettings() model.Settings { return a.opts.ModelSettings }

// FindAgent returns the agent named name reachable from a through handoffs
// (breadth first, a included). Lazy handoffs are resolved on the way.
func (a *Agent) FindAgent(name string) (*Agent, bool) {
	seen := map[*Agent]bool{}
	queue := []*Agent{a}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur == nil || seen[cur] {
			continue
		}
		seen[cur] = true

		if cur.name == name {
			return cur, true
		}

		for _, h := range cur.opts.Handoffs {
			queue = append(queue, h.Target())
		}
	}

	return nil, false
}

func copyOptions(o Options) Options {
	o.Tools = slices.Clone(o.Tools)
	o.Providers = slices.Clone(o.Providers)
	o.Handoffs = slices.Clone(o.Handoffs)
	o.InputGuardrails = slices.Clone(o.InputGuardrails)
	o.OutputGuardrails = slices.Clone(o.OutputGuardrails)
	return o
}
