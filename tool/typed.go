package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
)

// NewTypedTool builds a FunctionTool whose argument schema is derived from
// the struct type T and whose arguments are decoded into T before fn runs.
//
//	type cancelArgs struct {
//	  OrderID string `json:"order_id" jsonschema:"description=Order to cancel"`
//	}
//
//	cancel := tool.NewTypedTool("cancel_order", "Cancel an order",
//	  func(tc *core.ToolContext, in cancelArgs) (any, error) { ... },
//	  tool.WithApproval())
func NewTypedTool[T any](
	name, description string,
	fn func(toolCtx *core.ToolContext, in T) (any, error),
	optFns ...func(o *Options),
) *FunctionTool {
	var zero T

	return NewFunctionTool(name, description, util.SchemaFor(&zero), func(tc *core.ToolContext, args map[string]any) (any, error) {
		in, err := decodeArgs[T](args)
		if err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("invalid arguments: %v", err),
				Code:    core.ToolErrorValidation,
				Err:     err,
			}
		}
		return fn(tc, in)
	}, optFns...)
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var out T

	raw, err := json.Marshal(args)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}

	return out, nil
}
