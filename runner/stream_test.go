package runner

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/guardrail"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

type forecast struct {
	City    string  `json:"city"`
	Celsius float64 `json:"celsius"`
}

func collectChunks(s *Stream) (text string, completed []Chunk) {
	var sb strings.Builder
	for c := range s.Chunks() {
		if c.IsCompleted {
			completed = append(completed, c)
			continue
		}
		sb.WriteString(c.Value)
	}
	return sb.String(), completed
}

func TestStream_ChunksMatchFinalOutput(t *testing.T) {
	a := agent.New("Poet", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(model.Reply("Roses are red, violets are blue."))
	})

	s := New().RunStreamed(context.Background(), a, "write a poem")

	text, completed := collectChunks(s)
	require.Len(t, completed, 1)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, res.FinalOutput, text)
	assert.Equal(t, res.FinalOutput, completed[0].Value)

	// Chunks is single use.
	n := 0
	for range s.Chunks() {
		n++
	}
	assert.Zero(t, n)
}

func TestStream_ToolTurnsThenAnswer(t *testing.T) {
	var calls atomic.Int32
	a := agent.New("Assistant", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(
			model.CallTools(model.Call("c1", "get_weather", `{"city":"Oslo"}`)),
			model.Reply("It is sunny in Oslo."),
		)
		o.Tools = []tool.Tool{weatherTool(&calls)}
	})

	s := New().RunStreamed(context.Background(), a, "weather?")
	text, completed := collectChunks(s)

	assert.Equal(t, "It is sunny in Oslo.", text)
	require.Len(t, completed, 1)
	assert.Equal(t, "It is sunny in Oslo.", completed[0].Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStream_ToolCallPreambleNotChunked(t *testing.T) {
	var calls atomic.Int32
	a := agent.New("Assistant", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(
			model.Turn{
				Text:      "Let me check. ",
				ToolCalls: []core.ToolCall{model.Call("c1", "get_weather", `{"city":"Oslo"}`)},
			},
			model.Reply("It is sunny."),
		)
		o.Tools = []tool.Tool{weatherTool(&calls)}
	})

	s := New().RunStreamed(context.Background(), a, "weather?")
	text, completed := collectChunks(s)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", res.FinalOutput)
	assert.Equal(t, res.FinalOutput, text)
	require.Len(t, completed, 1)
	assert.Equal(t, "It is sunny.", completed[0].Value)
	assert.Equal(t, int32(1), calls.Load())

	// The preamble is kept in history as an assistant item.
	assert.Equal(t, []core.ItemKind{
		core.ItemUserMessage,
		core.ItemAssistantMessage,
		core.ItemToolCall,
		core.ItemToolResult,
		core.ItemAssistantMessage,
	}, kinds(res.History))
	assert.Equal(t, "Let me check. ", res.History[1].Text)
}

func TestStream_ToolCallPreambleOnlyAsItemEvent(t *testing.T) {
	a := agent.New("Assistant", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(
			model.Turn{
				Text:      "Looking it up. ",
				ToolCalls: []core.ToolCall{model.Call("c1", "get_weather", `{"city":"Oslo"}`)},
			},
			model.Reply("Sunny."),
		)
		o.Tools = []tool.Tool{weatherTool(nil)}
	})

	s := New().RunStreamed(context.Background(), a, "weather?")

	var deltas strings.Builder
	for ev := range s.Events() {
		if ev.Type == EventTextDelta {
			deltas.WriteString(ev.Delta)
		}
	}

	assert.Equal(t, "Sunny.", deltas.String())
}

// cutOffModel streams a fragment and then breaks off without a final
// response on its first call; later calls are served by next.
type cutOffModel struct {
	calls atomic.Int32
	next  model.Model
}

func (m *cutOffModel) Info() model.Info { return m.next.Info() }

func (m *cutOffModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	if m.calls.Add(1) > 1 {
		return m.next.Generate(ctx, req)
	}

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	respCh <- model.Response{Partial: true, Delta: "It is sun"}
	errCh <- fmt.Errorf("%w: stream cut off", core.ErrMalformedOutput)
	close(respCh)
	close(errCh)

	return respCh, errCh
}

func TestStream_RetriedAttemptDeltasDiscarded(t *testing.T) {
	m := &cutOffModel{next: model.NewScriptedModel(model.Reply("It is sunny."))}
	a := agent.New("Assistant", func(o *agent.Options) {
		o.Model = m
	})

	s := New().RunStreamed(context.Background(), a, "weather?")
	text, completed := collectChunks(s)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", res.FinalOutput)
	assert.Equal(t, res.FinalOutput, text)
	require.Len(t, completed, 1)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestStream_StructuredOutputWithheldUntilValid(t *testing.T) {
	valid := `{"city": "Oslo", "celsius": 21.5}`

	a := agent.New("Forecaster", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(
			model.Reply("sorry I cannot produce json"),
			model.Reply(valid),
		)
		o.OutputType = agent.OutputTypeFor[forecast]()
	})

	s := New().RunStreamed(context.Background(), a, "forecast for Oslo")
	text, completed := collectChunks(s)

	assert.Equal(t, valid, text)
	require.Len(t, completed, 1)
	assert.Equal(t, valid, completed[0].Value)

	res, err := s.Result()
	require.NoError(t, err)
	out, ok := FinalOutputAs[forecast](res)
	require.True(t, ok)
	assert.Equal(t, forecast{City: "Oslo", Celsius: 21.5}, out)
	assert.Equal(t, 1, res.Turns)
}

func TestStream_OutputGuardrailTripHidesDeltas(t *testing.T) {
	a := agent.New("Leaky", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(model.Reply("the password is hunter2"))
		o.OutputGuardrails = []guardrail.Output{{
			Name: "no_secrets",
			Check: func(_ *core.RunContext, _ string, output any) (guardrail.Result, error) {
				if strings.Contains(output.(string), "password") {
					return guardrail.Trip("secret detected"), nil
				}
				return guardrail.Pass(), nil
			},
		}}
	})

	s := New().RunStreamed(context.Background(), a, "tell me a secret")
	text, completed := collectChunks(s)

	assert.Empty(t, text)
	require.Len(t, completed, 1)
	assert.Empty(t, completed[0].Value)

	res, err := s.Result()
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrGuardrailTripwire)
}

func TestStream_EventOrder(t *testing.T) {
	a := agent.New("Assistant", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(
			model.CallTools(model.Call("c1", "get_weather", `{"city":"Oslo"}`)),
			model.Reply("Sunny today."),
		)
		o.Tools = []tool.Tool{weatherTool(nil)}
	})

	s := New().RunStreamed(context.Background(), a, "weather?")

	var types []EventType
	var itemKinds []core.ItemKind
	for ev := range s.Events() {
		if len(types) == 0 || types[len(types)-1] != ev.Type {
			types = append(types, ev.Type)
		}
		if ev.Type == EventItem {
			itemKinds = append(itemKinds, ev.Item.Kind)
		}
	}

	assert.Equal(t, []EventType{EventAgentUpdated, EventItem, EventTextDelta, EventItem}, types)
	assert.Equal(t, []core.ItemKind{core.ItemToolCall, core.ItemToolResult, core.ItemAssistantMessage}, itemKinds)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "Sunny today.", res.FinalOutput)
}

func TestStream_EarlyBreak(t *testing.T) {
	a := agent.New("Talker", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(model.Reply("one two three four five six"))
	})

	s := New(func(o *Options) { o.StreamBuffer = 1 }).RunStreamed(context.Background(), a, "count")

	for c := range s.Chunks() {
		assert.Equal(t, "one ", c.Value)
		break
	}

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "one two three four five six", res.FinalOutput)
}

func TestStream_InterruptedThenResumed(t *testing.T) {
	var cancelled atomic.Int32
	a := orderAgent(&cancelled, true)
	r := New()

	s := r.RunStreamed(context.Background(), a, "cancel order 42")
	text, completed := collectChunks(s)
	assert.Empty(t, text)
	require.Len(t, completed, 1)
	assert.Empty(t, completed[0].Value)

	res, err := s.Result()
	require.NoError(t, err)
	require.True(t, res.Interrupted())
	require.NoError(t, res.State.Approve("c1"))

	resumed := r.ResumeStreamed(context.Background(), a, res.State)
	text, completed = collectChunks(resumed)
	assert.Equal(t, "Order 42 cancelled.", text)
	require.Len(t, completed, 1)
	assert.Equal(t, int32(1), cancelled.Load())
}

func TestStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := agent.New("Idle", func(o *agent.Options) {
		o.Model = model.NewScriptedModel(model.Reply("never"))
	})

	s := New().RunStreamed(ctx, a, "hi")
	_, completed := collectChunks(s)
	require.Len(t, completed, 1)
	assert.Empty(t, completed[0].Value)
	assert.ErrorIs(t, s.Err(), context.Canceled)
}
