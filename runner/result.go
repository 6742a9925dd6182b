package runner

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/guardrail"
	"github.com/hupe1980/agentrelay/model"
)

// Result is the outcome of a run: either a final output or, when approvals
// are pending, Interruptions plus the State to resume from.
type Result struct {
	RunID string
	// FinalOutput is the final answer: a string for text agents, the decoded
	// output type otherwise.
	FinalOutput any
	// RawOutput is the model text the final output was parsed from.
	RawOutput string
	// LastAgent is the agent that was active when the run ended.
	LastAgent *agent.Agent
	// History is the complete conversation, input included.
	History core.History
	// NewItems are the items produced by this call. The input items and any
	// stored session history are excluded.
	NewItems      core.History
	Interruptions []Interruption
	State         *RunState
	// Turns counts model calls, including those of earlier resumed segments.
	Turns int
	Usage model.TokenUsage

	InputGuardrailResults  []guardrail.Evaluation
	OutputGuardrailResults []guardrail.Evaluation
}

// Interrupted reports whether the run is suspended awaiting decisions.
func (r *Result) Interrupted() bool { return len(r.Interruptions) > 0 }

// FinalText renders the final output as text.
func (r *Result) FinalText() string {
	switch v := r.FinalOutput.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		if r.RawOutput != "" {
			return r.RawOutput
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// FinalOutputAs returns the final output typed as T.
func FinalOutputAs[T any](r *Result) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.FinalOutput.(T)
	return v, ok
}
