package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

func TestBuildMessages_AlternatesRoles(t *testing.T) {
	a := core.ToolCall{ID: "t1", Name: "a", Arguments: `{"x":1}`}
	b := core.ToolCall{ID: "t2", Name: "b", Arguments: ``}

	msgs := buildMessages(core.NewHistory("hi").Append(
		core.NewAssistantMessage("agent", "checking"),
		core.NewToolCallItem("agent", a),
		core.NewToolCallItem("agent", b),
		core.NewToolResultItem("agent", a, "A", nil),
		core.NewToolResultItem("agent", b, nil, assert.AnError),
		core.NewHandoffItem("agent", "other"),
		core.NewAssistantMessage("other", "done"),
	))

	require.Len(t, msgs, 4)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 3) // text + two tool_use blocks
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Len(t, msgs[2].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
}

func TestSystemPrompt_IncludesSchema(t *testing.T) {
	got := systemPrompt(model.Request{
		Instructions: "Be helpful.",
		OutputSchema: &model.OutputSchema{Name: "answer", Schema: map[string]any{"type": "object"}},
	})
	assert.Contains(t, got, "Be helpful.")
	assert.Contains(t, got, `{"type":"object"}`)

	assert.Equal(t, "plain", systemPrompt(model.Request{Instructions: "plain"}))
}

func TestGenerate_ToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "Let me look."},
				{"type": "tool_use", "id": "tu_1", "name": "lookup", "input": {"q": "x"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	resp, err := model.Collect(context.Background(), m, model.Request{
		History: core.NewHistory("find x"),
		Tools:   []model.ToolDefinition{{Name: "lookup", Description: "Look things up"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Let me look.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "lookup", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"q":"x"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestGenerate_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	_, err := model.Collect(context.Background(), m, model.Request{History: core.NewHistory("hi")}, nil)
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}
