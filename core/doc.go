// Package core provides the foundational types shared by every agentrelay
// package:
//
//   - Item / History: the append-only conversation history of a run
//   - RunContext / ToolContext: the execution scopes handed to instructions,
//     guardrails and tools, carrying the caller's ambient value
//   - TurnLimiter: the per-run turn budget
//   - the error taxonomy (guardrail tripwires, tool errors, malformed output,
//     turn limit, transient collaborator failures)
//
// The package deliberately holds no orchestration logic; see package runner.
package core
