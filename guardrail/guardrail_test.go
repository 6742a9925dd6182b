package guardrail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func testRunContext() *core.RunContext {
	return core.NewRunContext(context.Background(), "run", nil, nil)
}

func TestRunInput_ShortCircuits(t *testing.T) {
	var calls []string
	mk := func(name string, trip bool) Input {
		return Input{Name: name, Check: func(*core.RunContext, string, core.History) (Result, error) {
			calls = append(calls, name)
			if trip {
				return Trip("blocked by " + name), nil
			}
			return Pass(), nil
		}}
	}

	evals, err := RunInput(testRunContext(), "agent", core.NewHistory("hi"), []Input{mk("a", false), mk("b", true), mk("c", false)})

	var gte *core.GuardrailTripwireError
	require.ErrorAs(t, err, &gte)
	assert.Equal(t, "b", gte.Guardrail)
	assert.Equal(t, core.GuardrailInput, gte.Kind)
	assert.Equal(t, "blocked by b", gte.OutputInfo)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Len(t, evals, 2)
}

func TestRunInput_ErrorAborts(t *testing.T) {
	boom := errors.New("classifier down")
	_, err := RunInput(testRunContext(), "agent", nil, []Input{{
		Name:  "broken",
		Check: func(*core.RunContext, string, core.History) (Result, error) { return Result{}, boom },
	}})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, core.ErrGuardrailTripwire)
}

func TestRunOutput(t *testing.T) {
	sqlGuard := Output{Name: "sql", Check: func(_ *core.RunContext, _ string, output any) (Result, error) {
		s, _ := output.(string)
		return Result{TripwireTriggered: strings.Contains(strings.ToUpper(s), "DELETE")}, nil
	}}

	evals, err := RunOutput(testRunContext(), "agent", "SELECT 1", []Output{sqlGuard})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.False(t, evals[0].Result.TripwireTriggered)

	_, err = RunOutput(testRunContext(), "agent", "DELETE FROM users", []Output{sqlGuard})
	assert.ErrorIs(t, err, core.ErrGuardrailTripwire)
}

func TestInputFunc_SeesLatestUserMessage(t *testing.T) {
	var seen string
	g := InputFunc("len", func(_ *core.RunContext, text string) (bool, any, error) {
		seen = text
		return len(text) > 5, nil, nil
	})

	h := core.NewHistory("first").Append(core.NewAssistantMessage("a", "reply"), core.NewUserMessage("second message"))
	res, err := g.Check(testRunContext(), "a", h)
	require.NoError(t, err)
	assert.True(t, res.TripwireTriggered)
	assert.Equal(t, "second message", seen)
}
