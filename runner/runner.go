package runner

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

const tracerName = "github.com/hupe1980/agentrelay/runner"

// Runner executes agents. Public methods are safe for concurrent use.
type Runner struct {
	opts     Options
	tracer   trace.Tracer
	executor *toolExecutor
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxTurns:     10,
		StreamBuffer: 64,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = 64
	}

	tracer := opts.TracerProvider.Tracer(tracerName)

	return &Runner{
		opts:   opts,
		tracer: tracer,
		executor: &toolExecutor{
			maxParallel: opts.MaxParallelTools,
			tracer:      tracer,
			metrics:     opts.Metrics,
		},
	}
}

// Run starts a run of a with a single user message.
func (r *Runner) Run(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *RunOptions)) (*Result, error) {
	return r.RunItems(ctx, a, core.NewHistory(input), optFns...)
}

// RunItems starts a run of a continuing the given history. The caller's
// slice is never modified.
func (r *Runner) RunItems(ctx context.Context, a *agent.Agent, input core.History, optFns ...func(o *RunOptions)) (*Result, error) {
	return r.start(ctx, a, input, r.runOptions(optFns), nil)
}

// Resume continues a suspended run once every interruption is decided.
// startingAgent must be the agent the run was started with; the active agent
// is looked up through its handoffs.
func (r *Runner) Resume(ctx context.Context, startingAgent *agent.Agent, state *RunState, optFns ...func(o *RunOptions)) (*Result, error) {
	return r.resume(ctx, startingAgent, state, r.runOptions(optFns), nil)
}

// ResumeWithDecisions records decisions on state and resumes it.
func (r *Runner) ResumeWithDecisions(ctx context.Context, startingAgent *agent.Agent, state *RunState, decisions []Decision, optFns ...func(o *RunOptions)) (*Result, error) {
	if state == nil {
		return nil, errors.New("runner: nil run state")
	}
	for _, d := range decisions {
		if err := state.Decide(d); err != nil {
			return nil, err
		}
	}
	return r.Resume(ctx, startingAgent, state, optFns...)
}

func (r *Runner) runOptions(optFns []func(o *RunOptions)) RunOptions {
	ro := RunOptions{}
	for _, fn := range optFns {
		fn(&ro)
	}
	return ro
}

func (r *Runner) start(ctx context.Context, a *agent.Agent, input core.History, ro RunOptions, emit func(Event) error) (*Result, error) {
	if a == nil {
		return nil, errors.New("runner: nil agent")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	history := core.History{}
	persisted := 0

	if ro.ConversationID != "" {
		if r.opts.SessionStore == nil {
			return nil, fmt.Errorf("runner: conversation %q requires a session store", ro.ConversationID)
		}
		stored, err := r.opts.SessionStore.Load(ctx, ro.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation %q: %w", ro.ConversationID, err)
		}
		history = stored
		persisted = len(stored)
	}

	history = history.Append(input...)

	maxTurns := r.opts.MaxTurns
	if ro.MaxTurns > 0 {
		maxTurns = ro.MaxTurns
	}

	e := &execution{
		r:              r,
		starting:       a,
		active:         a,
		runID:          core.NewID(),
		conversationID: ro.ConversationID,
		value:          ro.Context,
		maxTurns:       maxTurns,
		limiter:        core.NewTurnLimiter(maxTurns, 0),
		history:        history,
		baseLen:        len(history),
		persistedLen:   persisted,
		emit:           emit,
	}

	return e.run(ctx, func(ctx context.Context) (*Result, error) {
		if err := e.runInputGuardrails(history); err != nil {
			return nil, err
		}
		return e.loop(ctx)
	})
}

func (r *Runner) resume(ctx context.Context, startingAgent *agent.Agent, state *RunState, ro RunOptions, emit func(Event) error) (*Result, error) {
	if state == nil {
		return nil, errors.New("runner: nil run state")
	}
	if startingAgent == nil {
		return nil, errors.New("runner: nil agent")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if pending := state.Pending(); len(pending) > 0 {
		return nil, fmt.Errorf("%w: %d of %d interruptions undecided", core.ErrUnresolvedInterruptions, len(pending), len(state.Interruptions))
	}

	active, ok := startingAgent.FindAgent(state.ActiveAgent)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not reachable from %q", core.ErrAgentNotFound, state.ActiveAgent, startingAgent.Name())
	}

	if !state.consumed.CompareAndSwap(false, true) {
		return nil, ErrStateConsumed
	}

	value := state.Context
	if ro.contextSet {
		value = ro.Context
	}

	maxTurns := state.MaxTurns
	if ro.MaxTurns > 0 {
		maxTurns = ro.MaxTurns
	}

	history := state.History.Clone()

	e := &execution{
		r:              r,
		starting:       startingAgent,
		active:         active,
		runID:          state.RunID,
		conversationID: state.ConversationID,
		value:          value,
		maxTurns:       maxTurns,
		limiter:        core.NewTurnLimiter(maxTurns, state.Turn),
		history:        history,
		baseLen:        len(history),
		persistedLen:   state.PersistedLen,
		emit:           emit,
	}

	calls := append([]core.ToolCall(nil), state.PendingCalls...)
	decisions := state.decisions()

	return e.run(ctx, func(ctx context.Context) (*Result, error) {
		e.turnRC = e.rc.ForTurn(e.active.Name(), e.limiter.Count())

		reg, err := e.registry(ctx)
		if err != nil {
			return nil, err
		}

		e.turnRC.LogInfo("run.resume", "agent", e.active.Name(), "calls", len(calls), "decisions", len(decisions))

		if _, err := e.processBatch(reg, calls, decisions); err != nil {
			return nil, err
		}

		return e.loop(ctx)
	})
}
