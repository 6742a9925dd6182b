package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestHistoryBuilder(t *testing.T) {
	h := NewHistoryBuilder("Triage").
		User("refund please").
		Call("h1", "transfer_to_billing", "").
		Result("h1", "ok").
		Handoff("Billing").
		Call("c1", "refund", `{"order":"7"}`).
		Failure("c1", "order not found").
		Assistant("I could not find that order.").
		Build()

	require.Len(t, h, 7)
	assert.Equal(t, "{}", h[1].ToolCall.Arguments)
	assert.Equal(t, "transfer_to_billing", h[2].ToolResult.Name)
	assert.Equal(t, &core.Handoff{From: "Triage", To: "Billing"}, h[3].Handoff)
	assert.Equal(t, "Billing", h[4].Agent)
	assert.True(t, h[5].IsError())
	assert.Equal(t, "order not found", h[5].ToolResult.Error)
	assert.Equal(t, "I could not find that order.", h.LastAssistantText())
}
