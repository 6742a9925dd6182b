// Package guardrail defines input and output guardrails: named checks that
// may abort a run before the first model call (input) or before a final
// answer is returned (output).
//
// Guardrails are evaluated sequentially in declaration order. The first
// tripwire stops evaluation and is reported as a *core.GuardrailTripwireError;
// a guardrail that fails with an error aborts the run with that error.
package guardrail

import (
	"fmt"

	"github.com/hupe1980/agentrelay/core"
)

// Result is the verdict of one guardrail evaluation.
type Result struct {
	// TripwireTriggered rejects the input or output.
	TripwireTriggered bool
	// OutputInfo carries optional diagnostics (e.g. a classifier's reasoning).
	OutputInfo any
}

// Pass returns a non-triggering result.
func Pass() Result { return Result{} }

// Trip returns a triggering result with diagnostics.
func Trip(info any) Result { return Result{TripwireTriggered: true, OutputInfo: info} }

// Input checks the conversation input of a run before the first model call.
type Input struct {
	Name  string
	Check func(rc *core.RunContext, agentName string, input core.History) (Result, error)
}

// Output checks the final output of the active agent.
type Output struct {
	Name  string
	Check func(rc *core.RunContext, agentName string, output any) (Result, error)
}

// Evaluation records a guardrail that ran and its verdict.
type Evaluation struct {
	Guardrail string
	Kind      core.GuardrailKind
	Result    Result
}

// RunInput evaluates guardrails against input. It returns the evaluations
// performed so far together with either nil, the first tripwire as a
// *core.GuardrailTripwireError, or the first guardrail failure.
func RunInput(rc *core.RunContext, agentName string, input core.History, guardrails []Input) ([]Evaluation, error) {
	evals := make([]Evaluation, 0, len(guardrails))

	for _, g := range guardrails {
		if err := rc.Err(); err != nil {
			return evals, err
		}

		res, err := g.Check(rc, agentName, input.Clone())
		if err != nil {
			rc.LogError("guardrail.error", "kind", core.GuardrailInput, "guardrail", g.Name, "error", err.Error())
			return evals, fmt.Errorf("input guardrail %q: %w", g.Name, err)
		}

		evals = append(evals, Evaluation{Guardrail: g.Name, Kind: core.GuardrailInput, Result: res})

		if res.TripwireTriggered {
			rc.LogWarn("guardrail.tripwire", "kind", core.GuardrailInput, "guardrail", g.Name, "agent", agentName)
			return evals, &core.GuardrailTripwireError{
				Kind:       core.GuardrailInput,
				Guardrail:  g.Name,
				Agent:      agentName,
				OutputInfo: res.OutputInfo,
			}
		}
	}

	return evals, nil
}

// RunOutput evaluates guardrails against a final output, with the same
// semantics as RunInput.
func RunOutput(rc *core.RunContext, agentName string, output any, guardrails []Output) ([]Evaluation, error) {
	evals := make([]Evaluation, 0, len(guardrails))

	for _, g := range guardrails {
		if err := rc.Err(); err != nil {
			return evals, err
		}

		res, err := g.Check(rc, agentName, output)
		if err != nil {
			rc.LogError("guardrail.error", "kind", core.GuardrailOutput, "guardrail", g.Name, "error", err.Error())
			return evals, fmt.Errorf("output guardrail %q: %w", g.Name, err)
		}

		evals = append(evals, Evaluation{Guardrail: g.Name, Kind: core.GuardrailOutput, Result: res})

		if res.TripwireTriggered {
			rc.LogWarn("guardrail.tripwire", "kind", core.GuardrailOutput, "guardrail", g.Name, "agent", agentName)
			return evals, &core.GuardrailTripwireError{
				Kind:       core.GuardrailOutput,
				Guardrail:  g.Name,
				Agent:      agentName,
				OutputInfo: res.OutputInfo,
			}
		}
	}

	return evals, nil
}

// InputFunc adapts a simple predicate over the latest user message into an
// input guardrail. The predicate returns whether to trip plus diagnostics.
func InputFunc(name string, fn func(rc *core.RunContext, text string) (bool, any, error)) Input {
	return Input{
		Name: name,
		Check: func(rc *core.RunContext, _ string, input core.History) (Result, error) {
			text := ""
			for i := len(input) - 1; i >= 0; i-- {
				if input[i].Kind == core.ItemUserMessage {
					text = input[i].Text
					break
				}
			}
			trip, info, err := fn(rc, text)
			if err != nil {
				return Result{}, err
			}
			return Result{TripwireTriggered: trip, OutputInfo: info}, nil
		},
	}
}
