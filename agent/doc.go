// Package agent defines the immutable description of an agent: its
// instructions, model, tools, remote tool providers, handoffs, structured
// output type and guardrails.
//
// An Agent is plain data. Execution lives in the runner package, which
// reads the definition each turn and never mutates it. Use Clone to derive
// variants:
//
//	triage := agent.New("Triage Agent", func(o *agent.Options) {
//		o.Instructions = agent.Text("Route the user to the right specialist.")
//		o.Handoffs = []*agent.Handoff{agent.HandoffTo(support)}
//	})
//
// Handoffs to agents defined later (including cycles) are declared with
// LazyHandoff.
package agent
