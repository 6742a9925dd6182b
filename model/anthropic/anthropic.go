// Package anthropic provides a model.Model backed by the Anthropic Messages
// API, including streaming and tool use. Structured output schemas are
// conveyed to the model as a system instruction.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions(optFns)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: defaultOptions(optFns)}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- classify(fmt.Errorf("anthropic api error: %w", err))
			return
		}

		out <- toResponse(resp)
	}()

	return out, errCh
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	temperature := m.opts.Temperature
	if req.Settings.Temperature != nil {
		temperature = *req.Settings.Temperature
	}
	maxTokens := m.opts.MaxTokens
	if req.Settings.MaxTokens > 0 {
		maxTokens = req.Settings.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.History),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if req.Settings.TopP != nil {
		params.TopP = anthropic.Float(*req.Settings.TopP)
	}

	if system := systemPrompt(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// systemPrompt merges the agent instructions with the output schema contract.
func systemPrompt(req model.Request) string {
	if req.OutputSchema == nil {
		return req.Instructions
	}

	schema, err := json.Marshal(req.OutputSchema.Schema)
	if err != nil {
		return req.Instructions
	}

	var b strings.Builder
	if req.Instructions != "" {
		b.WriteString(req.Instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("When you give your final answer, respond with a single JSON object and nothing else. ")
	b.WriteString("The object must conform to this JSON schema:\n")
	b.Write(schema)

	return b.String()
}

// buildMessages converts history items into alternating user/assistant
// messages. Tool calls join the assistant turn they belong to; tool results
// are sent back as user tool_result blocks.
func buildMessages(history core.History) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		role     anthropic.MessageParamRole
		blocks   []anthropic.ContentBlockParamUnion
	)

	push := func(r anthropic.MessageParamRole, block anthropic.ContentBlockParamUnion) {
		if r != role && len(blocks) > 0 {
			messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
			blocks = nil
		}
		role = r
		blocks = append(blocks, block)
	}

	for _, it := range history {
		switch it.Kind {
		case core.ItemUserMessage:
			if it.Text != "" {
				push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(it.Text))
			}
		case core.ItemAssistantMessage:
			if it.Text != "" {
				push(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(it.Text))
			}
		case core.ItemToolCall:
			var input any = map[string]any{}
			if it.ToolCall.Arguments != "" {
				if err := json.Unmarshal([]byte(it.ToolCall.Arguments), &input); err != nil {
					input = map[string]any{"raw": it.ToolCall.Arguments}
				}
			}
			push(anthropic.MessageParamRoleAssistant, anthropic.NewToolUseBlock(it.ToolCall.ID, input, it.ToolCall.Name))
		case core.ItemToolResult:
			res := it.ToolResult
			content := res.OutputText()
			if res.Error != "" {
				content = res.Error
			}
			push(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(res.CallID, content, res.Error != ""))
		}
	}

	if len(blocks) > 0 {
		messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	return messages
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tdef.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch req := params["required"].(type) {
			case []string:
				inputSchema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Name)
		if tdef.Description != "" {
			out[i].OfTool.Description = anthropic.String(tdef.Description)
		}
	}

	return out
}

func (m *Model) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("%w: %v", core.ErrMalformedOutput, err)
			return
		}

		if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				select {
				case out <- model.Response{Partial: true, Delta: delta.Text}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- classify(fmt.Errorf("anthropic streaming error: %w", err))
		return
	}

	out <- toResponse(&message)
}

func toResponse(msg *anthropic.Message) model.Response {
	var (
		text  strings.Builder
		calls []core.ToolCall
	)

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := "{}"
			if len(tu.Input) > 0 {
				args = string(tu.Input)
			}
			calls = append(calls, core.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}

	finishReason := "stop"
	if msg.StopReason != "" {
		finishReason = string(msg.StopReason)
	}

	return model.Response{
		ID:           msg.ID,
		Text:         text.String(),
		ToolCalls:    calls,
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// classify marks rate limits, overload and server side failures as transient.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return core.Transient(err)
		}
		return err
	}

	return core.Transient(err)
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
