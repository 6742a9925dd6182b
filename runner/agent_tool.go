package runner

import (
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/tool"
)

// AgentTool exposes a as a tool. A call runs a nested run of a with the
// call's input as the user message and returns its final output. The nested
// run inherits the caller's ambient context but neither its history nor its
// conversation.
//
// Approvals inside the nested run cannot be surfaced to the outer caller; a
// nested interruption is reported to the model as a tool error.
func AgentTool(r *Runner, a *agent.Agent, name, description string, optFns ...func(o *tool.Options)) tool.Tool {
	if name == "" {
		name = util.SnakeCase(a.Name())
	}
	if description == "" {
		description = a.HandoffDescription()
	}

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "The request for the " + a.Name() + " agent.",
			},
		},
		"required": []any{"input"},
	}

	return tool.NewFunctionTool(name, description, params, func(tc *core.ToolContext, args map[string]any) (any, error) {
		input, _ := args["input"].(string)

		res, err := r.Run(tc.Context(), a, input, WithContext(tc.Value()))
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.Name(), err)
		}
		if res.Interrupted() {
			return nil, core.NewToolError(name, fmt.Sprintf("agent %s requires approval for %s", a.Name(), res.Interruptions[0].ToolName), core.ToolErrorExecution)
		}

		return res.FinalOutput, nil
	}, optFns...)
}
