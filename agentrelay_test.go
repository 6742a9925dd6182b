package agentrelay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/tool"
)

func newsAgent(sent *int) *agent.Agent {
	sendEmail := tool.NewFunctionTool("send_email", "Sends an email", nil, func(*core.ToolContext, map[string]any) (any, error) {
		*sent++
		return "sent", nil
	}, tool.WithApproval())

	return agent.New("News Email Agent", func(o *agent.Options) {
		o.Model = model.NewResponderModel(func(req model.Request) model.Turn {
			if tr, ok := req.History.FindToolResult("e1"); ok {
				if tr.Error != "" {
					return model.Reply("Email not sent.")
				}
				return model.Reply("Email sent.")
			}
			return model.CallTools(model.Call("e1", "send_email", `{"to":"me@example.com"}`))
		})
		o.Tools = []tool.Tool{sendEmail}
	})
}

func TestRunWithApprover(t *testing.T) {
	tests := []struct {
		name    string
		approve bool
		want    string
		sent    int
	}{
		{"approved", true, "Email sent.", 1},
		{"rejected", false, "Email not sent.", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sent := 0
			a := newsAgent(&sent)

			var asked []runner.Interruption
			res, err := New().RunWithApprover(context.Background(), a, "send me the news",
				func(_ context.Context, in runner.Interruption) (bool, string, error) {
					asked = append(asked, in)
					return tt.approve, "", nil
				})
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.FinalOutput)
			assert.Equal(t, tt.sent, sent)
			require.Len(t, asked, 1)
			assert.Equal(t, "send_email", asked[0].ToolName)
		})
	}
}

func TestRunWithApprover_Error(t *testing.T) {
	sent := 0
	boom := errors.New("operator unavailable")

	res, err := New().RunWithApprover(context.Background(), newsAgent(&sent), "send",
		func(context.Context, runner.Interruption) (bool, string, error) { return false, "", boom })
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.True(t, res.Interrupted())
	assert.Zero(t, sent)

	_, err = New().RunWithApprover(context.Background(), newsAgent(&sent), "send", nil)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	a := agent.New("Echo", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(model.Reply("hello"))
	})

	assert.Same(t, Default(), Default())

	res, err := Run(context.Background(), a, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.FinalOutput)
}

func TestConversationsDefaultToMemory(t *testing.T) {
	a := agent.New("Echo", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(model.Reply("first"), model.Reply("second"))
	})

	relay := New()
	_, err := relay.Run(context.Background(), a, "one", runner.WithConversationID("c"))
	require.NoError(t, err)

	res, err := relay.Run(context.Background(), a, "two", runner.WithConversationID("c"))
	require.NoError(t, err)
	assert.Len(t, res.History, 4)
}
