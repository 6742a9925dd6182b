// Package runner implements the run loop of agentrelay.
//
// A Runner drives one agent graph per call: it calls the active agent's
// model, executes requested tools (in parallel, results appended in request
// order), applies handoffs, enforces guardrails and the turn limit, and
// suspends when a tool call needs human approval.
//
// # Runs and resumption
//
// Run and RunItems start a run. A Result either carries the final output or,
// when approvals are pending, a list of Interruptions plus a serializable
// RunState. Decide every interruption with RunState.Approve / Reject and
// continue with Resume:
//
//	res, err := r.Run(ctx, agent, "cancel my last order")
//	for err == nil && res.Interrupted() {
//		for _, in := range res.Interruptions {
//			_ = res.State.Approve(in.ID)
//		}
//		res, err = r.Resume(ctx, agent, res.State)
//	}
//
// A RunState is single use: once resumed it cannot be resumed again.
//
// # Streaming
//
// RunStreamed and ResumeStreamed return a Stream whose Chunks iterator yields
// the final answer's text deltas followed by exactly one completed chunk.
// Events exposes the typed event sequence (text deltas, history items,
// agent changes) instead. The loop writes into a bounded buffer and blocks
// when the consumer falls behind; events are never dropped.
//
// The Runner holds no state between runs and is safe for concurrent use.
package runner
