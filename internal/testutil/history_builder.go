package testutil

import (
	"errors"

	"github.com/hupe1980/agentrelay/core"
)

// HistoryBuilder provides a fluent helper for constructing histories in tests.
// Example:
//
//	h := NewHistoryBuilder("Assistant").User("weather?").Call("c1", "get_weather", `{"city":"Oslo"}`).Result("c1", "sunny").Assistant("It is sunny.").Build()
//
// Items are authored by the current agent; Handoff switches it.
type HistoryBuilder struct {
	agent string
	items core.History
	calls map[string]core.ToolCall
}

// NewHistoryBuilder creates a builder whose items are authored by agent.
func NewHistoryBuilder(agent string) *HistoryBuilder {
	return &HistoryBuilder{agent: agent, calls: map[string]core.ToolCall{}}
}

// User appends a user message (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	b.items = append(b.items, core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant message of the current agent (chainable).
func (b *HistoryBuilder) Assistant(text string) *HistoryBuilder {
	b.items = append(b.items, core.NewAssistantMessage(b.agent, text))
	return b
}

// Call appends a tool call. An empty args string becomes "{}" (chainable).
func (b *HistoryBuilder) Call(id, name, args string) *HistoryBuilder {
	if args == "" {
		args = "{}"
	}
	call := core.ToolCall{ID: id, Name: name, Arguments: args}
	b.calls[id] = call
	b.items = append(b.items, core.NewToolCallItem(b.agent, call))
	return b
}

// Result appends the successful result of an earlier Call (chainable).
func (b *HistoryBuilder) Result(id string, output any) *HistoryBuilder {
	b.items = append(b.items, core.NewToolResultItem(b.agent, b.calls[id], output, nil))
	return b
}

// Failure appends a failed result of an earlier Call (chainable).
func (b *HistoryBuilder) Failure(id, message string) *HistoryBuilder {
	b.items = append(b.items, core.NewToolResultItem(b.agent, b.calls[id], nil, errors.New(message)))
	return b
}

// Handoff appends a handoff item and makes to the current agent (chainable).
func (b *HistoryBuilder) Handoff(to string) *HistoryBuilder {
	b.items = append(b.items, core.NewHandoffItem(b.agent, to))
	b.agent = to
	return b
}

// Build returns a copy of the accumulated history.
func (b *HistoryBuilder) Build() core.History { return b.items.Clone() }
