package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentrelay/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OutputSchema asks the model for a structured final answer conforming to
// Schema. Providers without native support receive it as an instruction.
type OutputSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// Settings are provider pass-through generation parameters. Zero values mean
// "provider default".
type Settings struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty"`
	ToolChoice  string   `json:"tool_choice,omitempty"` // auto, required, none
}

// Request captures the normalized model input produced by the runner for one
// turn.
type Request struct {
	Instructions string           `json:"instructions"`
	History      core.History     `json:"history"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	OutputSchema *OutputSchema    `json:"output_schema,omitempty"`
	Settings     Settings         `json:"settings"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial
// responses carry a text Delta; the single final response carries either the
// complete Text (a final answer) or the requested ToolCalls (possibly with
// accompanying Text).
type Response struct {
	ID           string          `json:"id"`
	Partial      bool            `json:"partial"`
	Delta        string          `json:"delta,omitempty"`
	Text         string          `json:"text,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage     `json:"usage,omitempty"`
}

// IsFinalAnswer reports whether r terminates the agent's turn sequence.
func (r Response) IsFinalAnswer() bool { return !r.Partial && len(r.ToolCalls) == 0 }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the collaborator that produces the next response for a request.
//
// Generate must close both channels when done. Implementations stream zero
// or more partial responses followed by exactly one final response, or
// report a single error. Errors that may succeed on retry should be wrapped
// with core.Transient; uninterpretable provider output with
// core.ErrMalformedOutput.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns its final response. onDelta,
// when non-nil, receives every partial text delta in order.
func Collect(ctx context.Context, m Model, req Request, onDelta func(string) error) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	defer func() { go drain(respCh, errCh) }()

	var (
		final    Response
		hasFinal bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if onDelta != nil && resp.Delta != "" {
					if err := onDelta(resp.Delta); err != nil {
						return Response{}, err
					}
				}
				continue
			}
			final, hasFinal = resp, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if !hasFinal {
		return Response{}, fmt.Errorf("%w: model %s ended without a final response", core.ErrMalformedOutput, m.Info().Name)
	}

	return final, nil
}

// drain consumes whatever a producer still sends so it can exit after the
// consumer gave up early.
func drain(respCh <-chan Response, errCh <-chan error) {
	for respCh != nil || errCh != nil {
		select {
		case _, ok := <-respCh:
			if !ok {
				respCh = nil
			}
		case _, ok := <-errCh:
			if !ok {
				errCh = nil
			}
		}
	}
}

// ErrScriptExhausted is returned by ScriptedModel when it has no turns left.
var ErrScriptExhausted = errors.New("scripted model: no scripted turns left")
