package runner

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/guardrail"
)

// AgentInputGuardrail builds an input guardrail that runs classifier on the
// latest user message and maps its final output to a verdict with decide.
func AgentInputGuardrail(name string, r *Runner, classifier *agent.Agent, decide func(output any) guardrail.Result) guardrail.Input {
	return guardrail.Input{
		Name: name,
		Check: func(rc *core.RunContext, _ string, input core.History) (guardrail.Result, error) {
			text := ""
			for i := len(input) - 1; i >= 0; i-- {
				if input[i].Kind == core.ItemUserMessage {
					text = input[i].Text
					break
				}
			}
			return classify(rc, r, classifier, text, decide)
		},
	}
}

// AgentOutputGuardrail builds an output guardrail that runs classifier on the
// agent's final output (strings verbatim, other values as JSON) and maps the
// classifier's final output to a verdict with decide.
func AgentOutputGuardrail(name string, r *Runner, classifier *agent.Agent, decide func(output any) guardrail.Result) guardrail.Output {
	return guardrail.Output{
		Name: name,
		Check: func(rc *core.RunContext, _ string, output any) (guardrail.Result, error) {
			text, ok := output.(string)
			if !ok {
				b, err := json.Marshal(output)
				if err != nil {
					return guardrail.Result{}, fmt.Errorf("encode output: %w", err)
				}
				text = string(b)
			}
			return classify(rc, r, classifier, text, decide)
		},
	}
}

func classify(rc *core.RunContext, r *Runner, classifier *agent.Agent, input string, decide func(any) guardrail.Result) (guardrail.Result, error) {
	res, err := r.Run(rc.Context, classifier, input, WithContext(rc.Value()))
	if err != nil {
		return guardrail.Result{}, fmt.Errorf("classifier %s: %w", classifier.Name(), err)
	}
	if res.Interrupted() {
		return guardrail.Result{}, fmt.Errorf("classifier %s: unexpected interruption", classifier.Name())
	}
	return decide(res.FinalOutput), nil
}
