package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ItemKind classifies a conversation history entry.
type ItemKind string

const (
	// ItemUserMessage is text supplied by the caller.
	ItemUserMessage ItemKind = "user_message"
	// ItemAssistantMessage is text produced by an agent's model.
	ItemAssistantMessage ItemKind = "assistant_message"
	// ItemToolCall is a tool invocation requested by the model.
	ItemToolCall ItemKind = "tool_call"
	// ItemToolResult is the outcome (value or error) of a tool call.
	ItemToolResult ItemKind = "tool_result"
	// ItemHandoff records control moving from one agent to another.
	ItemHandoff ItemKind = "handoff"
)

// ToolCall is a model request to invoke a named tool. Arguments holds the raw
// JSON object produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of one ToolCall. Exactly one of Output / Error is
// meaningful: a non-empty Error marks a failed call.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handoff records a transfer of control between two agents.
type Handoff struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Item is one entry of a ConversationHistory. Items are values; once appended
// to a history they are never modified.
type Item struct {
	ID         string      `json:"id"`
	Kind       ItemKind    `json:"kind"`
	Agent      string      `json:"agent,omitempty"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Handoff    *Handoff    `json:"handoff,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewID returns a new random identifier.
func NewID() string { return uuid.NewString() }

func newItem(kind ItemKind, agent string) Item {
	return Item{ID: NewID(), Kind: kind, Agent: agent, Timestamp: time.Now().UTC()}
}

// NewUserMessage creates a user-authored text item.
func NewUserMessage(text string) Item {
	it := newItem(ItemUserMessage, "")
	it.Text = text
	return it
}

// NewAssistantMessage creates an assistant text item authored by agent.
func NewAssistantMessage(agent, text string) Item {
	it := newItem(ItemAssistantMessage, agent)
	it.Text = text
	return it
}

// NewToolCallItem records a tool call requested by agent's model.
func NewToolCallItem(agent string, call ToolCall) Item {
	it := newItem(ItemToolCall, agent)
	it.ToolCall = &call
	return it
}

// NewToolResultItem records the outcome of a tool call. A non-nil err takes
// precedence over output.
func NewToolResultItem(agent string, call ToolCall, output any, err error) Item {
	it := newItem(ItemToolResult, agent)
	res := &ToolResult{CallID: call.ID, Name: call.Name}
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Output = output
	}
	it.ToolResult = res
	return it
}

// NewHandoffItem records control moving from one agent to another.
func NewHandoffItem(from, to string) Item {
	it := newItem(ItemHandoff, from)
	it.Handoff = &Handoff{From: from, To: to}
	return it
}

// IsError reports whether the item is a failed tool result.
func (i Item) IsError() bool {
	return i.Kind == ItemToolResult && i.ToolResult != nil && i.ToolResult.Error != ""
}

// OutputText renders a tool result the way it is shown to a model: the error
// message for failures, strings verbatim and everything else as JSON.
func (r ToolResult) OutputText() string {
	if r.Error != "" {
		return "error: " + r.Error
	}

	switch v := r.Output.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
