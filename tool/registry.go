package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/model"
)

// Resolution is the outcome of matching one model tool call against a
// Registry. When Err is set the call cannot run and Err is reported back to
// the model as the call's result.
type Resolution struct {
	Call core.ToolCall
	Tool Tool
	Args map[string]any
	Err  *core.ToolError
}

// NeedsApproval reports whether the call must wait for a human decision.
func (r Resolution) NeedsApproval() bool {
	return r.Err == nil && r.Tool != nil && r.Tool.RequiresApproval()
}

// Transfer returns the handoff tool when the call requests a handoff.
func (r Resolution) Transfer() (Transfer, bool) {
	if r.Err != nil || r.Tool == nil {
		return nil, false
	}
	t, ok := r.Tool.(Transfer)
	return t, ok
}

// Registry indexes the tools visible to an agent for one turn.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry. Tool names must be unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t to the registry.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("tool with empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Definitions returns the model facing declarations in registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Resolve matches call to a registered tool and parses and validates its
// arguments. Unknown tools and invalid arguments yield a Resolution carrying
// a NOT_FOUND or VALIDATION_ERROR tool error.
func (r *Registry) Resolve(call core.ToolCall) Resolution {
	res := Resolution{Call: call}

	t, ok := r.tools[call.Name]
	if !ok {
		res.Err = &core.ToolError{
			Tool:    call.Name,
			Message: fmt.Sprintf("tool %q not found", call.Name),
			Code:    core.ToolErrorNotFound,
		}
		return res
	}
	res.Tool = t

	args, err := parseArgs(call.Arguments)
	if err == nil {
		err = util.Validate(t.Parameters(), args)
	}
	if err != nil {
		res.Err = &core.ToolError{
			Tool:    call.Name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    core.ToolErrorValidation,
			Details: call.Arguments,
			Err:     err,
		}
		return res
	}
	res.Args = args

	return res
}

func parseArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	v, err := util.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}

	args, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object, got %T", v)
	}

	return args, nil
}
