package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_Taxonomy(t *testing.T) {
	trip := fmt.Errorf("run: %w", &GuardrailTripwireError{Kind: GuardrailInput, Guardrail: "sql", Agent: "a"})
	assert.ErrorIs(t, trip, ErrGuardrailTripwire)

	var gte *GuardrailTripwireError
	require.ErrorAs(t, trip, &gte)
	assert.Equal(t, "sql", gte.Guardrail)

	assert.ErrorIs(t, &MaxTurnsExceededError{MaxTurns: 3}, ErrMaxTurnsExceeded)
	assert.ErrorIs(t, &MalformedOutputError{Agent: "a", Err: errors.New("bad json")}, ErrMalformedOutput)

	te := &ToolError{Tool: "t", Message: "boom", Code: ToolErrorExecution, Err: context.DeadlineExceeded}
	assert.ErrorIs(t, te, context.DeadlineExceeded)
	assert.Equal(t, "tool t: boom", te.Error())
}

func TestErrors_Transient(t *testing.T) {
	assert.Nil(t, Transient(nil))

	base := errors.New("connection reset")
	err := Transient(base)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "connection reset", err.Error())
	assert.Same(t, err, Transient(err))

	assert.False(t, IsTransient(base))
}

func TestTurnLimiter(t *testing.T) {
	l := NewTurnLimiter(2, 0)
	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())

	err := l.Increment()
	assert.ErrorIs(t, err, ErrMaxTurnsExceeded)
	assert.Equal(t, 2, l.Count())

	resumed := NewTurnLimiter(3, 2)
	require.NoError(t, resumed.Increment())
	assert.Error(t, resumed.Increment())

	unlimited := NewTurnLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

type account struct{ UserID string }

func TestContextValue(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", account{UserID: "u1"}, nil)

	acc, ok := ContextValue[account](rc)
	require.True(t, ok)
	assert.Equal(t, "u1", acc.UserID)

	_, ok = ContextValue[string](rc)
	assert.False(t, ok)

	turn := rc.ForTurn("triage", 3)
	assert.Equal(t, "triage", turn.AgentName)
	assert.Equal(t, "", rc.AgentName)

	tc := NewToolContext(turn, "call-1")
	assert.Equal(t, "triage", tc.AgentName())
	assert.Equal(t, "call-1", tc.CallID())
	assert.Nil(t, tc.Actions().TransferToAgent)

	tc.TransferToAgent("billing")
	require.NotNil(t, tc.Actions().TransferToAgent)
	assert.Equal(t, "billing", *tc.Actions().TransferToAgent)
}
