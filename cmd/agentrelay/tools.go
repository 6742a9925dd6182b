package main

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// userInfo is the ambient value passed to every run of the CLI.
type userInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userArgs struct {
	UserID string `json:"user_id,omitempty" jsonschema:"description=Id of the user; defaults to the current user"`
}

type weatherArgs struct {
	City string `json:"city" jsonschema:"description=Name of the city"`
}

// builtinTools are the demo tools agents may reference by name.
func builtinTools() map[string]tool.Tool {
	tools := []tool.Tool{
		tool.NewFunctionTool("get_user_info", "Returns the id and name of the current user.", nil,
			func(tc *core.ToolContext, _ map[string]any) (any, error) {
				u, ok := tc.Value().(userInfo)
				if !ok || u.ID == "" {
					return nil, fmt.Errorf("no user is signed in")
				}
				return u, nil
			}),

		tool.NewTypedTool("fetch_user_orders", "Lists the open orders of a user.",
			func(tc *core.ToolContext, in userArgs) (any, error) {
				return map[string]any{
					"user_id": resolveUser(tc, in.UserID),
					"orders":  []string{"Macbook Air M4", "iPhone 17 pro"},
				}, nil
			}),

		tool.NewTypedTool("cancel_user_orders", "Cancels all open orders of a user.",
			func(tc *core.ToolContext, in userArgs) (any, error) {
				return map[string]any{
					"user_id":   resolveUser(tc, in.UserID),
					"cancelled": true,
				}, nil
			},
			tool.WithApproval()),

		tool.NewTypedTool("get_weather", "Returns the current weather for a city.",
			func(_ *core.ToolContext, in weatherArgs) (any, error) {
				city := strings.TrimSpace(in.City)
				if city == "" {
					return nil, fmt.Errorf("city is required")
				}
				return fmt.Sprintf("The weather in %s is sunny, 21°C.", city), nil
			}),
	}

	out := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		out[t.Name()] = t
	}
	return out
}

func resolveUser(tc *core.ToolContext, id string) string {
	if id != "" {
		return id
	}
	if u, ok := tc.Value().(userInfo); ok {
		return u.ID
	}
	return "anonymous"
}
