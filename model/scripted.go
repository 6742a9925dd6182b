package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// Turn is one scripted model reply: a final Text, a batch of ToolCalls
// (optionally with Text) or an Err.
type Turn struct {
	Text      string
	ToolCalls []core.ToolCall
	Err       error
}

// Reply scripts a final text answer.
func Reply(text string) Turn { return Turn{Text: text} }

// CallTools scripts a batch of tool calls.
func CallTools(calls ...core.ToolCall) Turn { return Turn{ToolCalls: calls} }

// Fail scripts an error.
func Fail(err error) Turn { return Turn{Err: err} }

// Call builds a tool call with deterministic id.
func Call(id, name, args string) core.ToolCall {
	if args == "" {
		args = "{}"
	}
	return core.ToolCall{ID: id, Name: name, Arguments: args}
}

// ScriptedModel is a deterministic in-memory Model for tests and examples.
// It replays scripted turns in order, or asks a responder function when
// constructed with NewResponderModel. Streaming requests receive the text in
// word sized deltas before the final response.
type ScriptedModel struct {
	info Info

	mu        sync.Mutex
	turns     []Turn
	next      int
	responder func(Request) Turn
	requests  []Request
}

// NewScriptedModel constructs a model replaying turns in order.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// NewResponderModel constructs a model that computes each turn from the request.
func NewResponderModel(fn func(Request) Turn) *ScriptedModel {
	m := NewScriptedModel()
	m.responder = fn
	return m
}

// Calls returns the number of Generate calls observed.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns copies of the requests observed so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request.
func (m *ScriptedModel) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

func (m *ScriptedModel) nextTurn(req Request) Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	req.History = req.History.Clone()
	m.requests = append(m.requests, req)

	if m.responder != nil {
		return m.responder(req)
	}
	if m.next >= len(m.turns) {
		return Turn{Err: ErrScriptExhausted}
	}
	t := m.turns[m.next]
	m.next++
	return t
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	turn := m.nextTurn(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		if req.Stream && turn.Text != "" {
			for _, w := range strings.SplitAfter(turn.Text, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Delta: w}:
				}
			}
		}

		final := Response{
			ID:           fmt.Sprintf("scripted-%d", m.Calls()),
			Text:         turn.Text,
			ToolCalls:    append([]core.ToolCall(nil), turn.ToolCalls...),
			FinishReason: "stop",
		}
		if len(turn.ToolCalls) > 0 {
			final.FinishReason = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- final:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
