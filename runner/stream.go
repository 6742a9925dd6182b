package runner

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
)

// EventType classifies stream events.
type EventType string

const (
	// EventTextDelta carries a fragment of the final answer's text.
	EventTextDelta EventType = "text_delta"
	// EventItem carries a history item appended by the run.
	EventItem EventType = "item"
	// EventAgentUpdated reports the active agent (at start and after each
	// handoff).
	EventAgentUpdated EventType = "agent_updated"
)

// Event is one element of a streamed run.
type Event struct {
	Type  EventType
	Agent string
	Delta string
	Item  *core.Item
}

// Chunk is one element of Stream.Chunks. The last chunk has IsCompleted set
// and carries the final output text.
type Chunk struct {
	IsCompleted bool
	Value       string
}

// Stream is a run executing in the background. Consume it through either
// Events or Chunks, not both.
type Stream struct {
	events chan Event
	done   chan struct{}

	result *Result
	err    error

	started atomic.Bool
}

// RunStreamed starts a run whose progress is streamed.
func (r *Runner) RunStreamed(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *RunOptions)) *Stream {
	ro := r.runOptions(optFns)
	return r.stream(ctx, func(ctx context.Context, emit func(Event) error) (*Result, error) {
		return r.start(ctx, a, core.NewHistory(input), ro, emit)
	})
}

// ResumeStreamed resumes a suspended run with streaming.
func (r *Runner) ResumeStreamed(ctx context.Context, startingAgent *agent.Agent, state *RunState, optFns ...func(o *RunOptions)) *Stream {
	ro := r.runOptions(optFns)
	return r.stream(ctx, func(ctx context.Context, emit func(Event) error) (*Result, error) {
		return r.resume(ctx, startingAgent, state, ro, emit)
	})
}

func (r *Runner) stream(ctx context.Context, body func(context.Context, func(Event) error) (*Result, error)) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Stream{
		events: make(chan Event, r.opts.StreamBuffer),
		done:   make(chan struct{}),
	}

	emit := func(ev Event) error {
		select {
		case s.events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go func() {
		defer close(s.done)
		defer close(s.events)

		s.result, s.err = body(ctx, emit)
	}()

	return s
}

// Events returns the ordered event channel, closed when the run ends.
func (s *Stream) Events() <-chan Event { return s.events }

// Chunks returns a single-use iterator over the final answer's text deltas,
// terminated by exactly one completed chunk holding the final output text
// (empty when the run failed or was interrupted; see Result). Iterating a
// second time yields nothing.
func (s *Stream) Chunks() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if !s.started.CompareAndSwap(false, true) {
			return
		}

		for ev := range s.events {
			if ev.Type != EventTextDelta {
				continue
			}
			if !yield(Chunk{Value: ev.Delta}) {
				go s.drain()
				return
			}
		}

		<-s.done

		final := ""
		if s.err == nil && s.result != nil && !s.result.Interrupted() {
			final = s.result.FinalText()
		}
		yield(Chunk{IsCompleted: true, Value: final})
	}
}

// Result waits for the run to end and returns its outcome. Unconsumed events
// are discarded.
func (s *Stream) Result() (*Result, error) {
	s.drain()
	<-s.done
	return s.result, s.err
}

// Err waits for the run to end and returns its error.
func (s *Stream) Err() error {
	_, err := s.Result()
	return err
}

// Done is closed once the run has ended.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) drain() {
	for range s.events {
	}
}
