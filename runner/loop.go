package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/guardrail"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/metrics"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

// ignoredHandoffOutput is reported for transfer calls after the first one in
// a batch.
const ignoredHandoffOutput = "Multiple handoffs requested in one turn; this one was ignored."

// rejectedMessage is the tool error shown to the model for rejected calls.
const rejectedMessage = "user rejected this action"

// execution is the mutable state of one run (or one resumed segment). It is
// confined to the goroutine driving the run.
type execution struct {
	r        *Runner
	starting *agent.Agent
	active   *agent.Agent

	runID          string
	conversationID string
	value          any
	maxTurns       int
	limiter        *core.TurnLimiter

	rc     *core.RunContext
	turnRC *core.RunContext
	logger logging.Logger

	history      core.History
	baseLen      int
	persistedLen int

	usage       model.TokenUsage
	inputEvals  []guardrail.Evaluation
	outputEvals []guardrail.Evaluation

	emit func(Event) error

	providers []tool.Provider
	connected map[string]bool
}

// turnOutput is the settled model response of one turn.
type turnOutput struct {
	resp   model.Response
	output any
	// deltas holds the streamed text of the final answer, withheld until it
	// passed parsing and output guardrails.
	deltas []string
}

func (e *execution) run(ctx context.Context, body func(ctx context.Context) (*Result, error)) (*Result, error) {
	start := time.Now()

	ctx, span := e.r.tracer.Start(ctx, "agentrelay.run", trace.WithAttributes(
		attribute.String("agentrelay.run_id", e.runID),
		attribute.String("agentrelay.agent", e.starting.Name()),
	))
	defer span.End()

	e.logger = scopedLogger(e.r.opts.Logger, e.runID, e.starting.Name())
	e.rc = core.NewRunContext(ctx, e.runID, e.value, e.logger)
	e.turnRC = e.rc.ForTurn(e.active.Name(), e.limiter.Count())
	e.connected = map[string]bool{}

	defer e.closeProviders()

	e.rc.LogInfo("run.start", "agent", e.active.Name(), "max_turns", e.maxTurns, "history", len(e.history))

	res, err := func() (*Result, error) {
		if err := e.emitEvent(Event{Type: EventAgentUpdated, Agent: e.active.Name()}); err != nil {
			return nil, err
		}
		return body(ctx)
	}()

	status := metrics.StatusCompleted
	switch {
	case err != nil:
		status = metrics.StatusError
		res = e.partial(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res != nil && res.Interrupted():
		status = metrics.StatusInterrupted
	}

	span.SetAttributes(
		attribute.String("agentrelay.status", status),
		attribute.Int("agentrelay.turns", e.limiter.Count()),
	)

	e.r.opts.Metrics.RecordRun(status)
	logRun(e.logger, e.limiter.Count(), time.Since(start), status, err)

	return res, err
}

// partial returns the history so far for recoverable failures (transient
// collaborator errors, cancellation) and nil for failures that end the run.
func (e *execution) partial(err error) *Result {
	if errors.Is(err, core.ErrGuardrailTripwire) ||
		errors.Is(err, core.ErrMalformedOutput) ||
		errors.Is(err, core.ErrMaxTurnsExceeded) {
		return nil
	}
	return e.result()
}

func (e *execution) result() *Result {
	return &Result{
		RunID:                  e.runID,
		LastAgent:              e.active,
		History:                e.history.Clone(),
		NewItems:               e.history.Since(e.baseLen),
		Turns:                  e.limiter.Count(),
		Usage:                  e.usage,
		InputGuardrailResults:  e.inputEvals,
		OutputGuardrailResults: e.outputEvals,
	}
}

func (e *execution) loop(ctx context.Context) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := e.limiter.Increment(); err != nil {
			e.rc.LogWarn("run.max_turns", "agent", e.active.Name(), "max_turns", e.maxTurns)
			return nil, err
		}

		res, done, err := e.turn(ctx, e.limiter.Count())
		if err != nil || done {
			return res, err
		}
	}
}

func (e *execution) turn(ctx context.Context, turn int) (*Result, bool, error) {
	name := e.active.Name()

	ctx, span := e.r.tracer.Start(ctx, "agentrelay.turn", trace.WithAttributes(
		attribute.String("agentrelay.agent", name),
		attribute.Int("agentrelay.turn", turn),
	))
	defer span.End()

	e.turnRC = e.rc.WithContext(ctx).ForTurn(name, turn)
	e.turnRC.LogInfo("run.turn", "agent", name, "turn", turn)

	reg, err := e.registry(ctx)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	out, err := e.generate(ctx, reg)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	e.r.opts.Metrics.RecordTurn(name, time.Since(start))

	if len(out.resp.ToolCalls) == 0 {
		res, err := e.complete(ctx, out)
		return res, true, err
	}

	calls := make([]core.ToolCall, len(out.resp.ToolCalls))
	for i, c := range out.resp.ToolCalls {
		if c.ID == "" {
			c.ID = core.NewID()
		}
		calls[i] = c
	}

	items := make([]core.Item, 0, len(calls)+1)
	if out.resp.Text != "" {
		items = append(items, core.NewAssistantMessage(name, out.resp.Text))
	}
	for _, c := range calls {
		items = append(items, core.NewToolCallItem(name, c))
	}
	if err := e.appendItems(items...); err != nil {
		return nil, false, err
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	res, err := e.processBatch(reg, calls, nil)
	if err != nil {
		return nil, false, err
	}

	return res, res != nil, nil
}

// registry collects the tools visible to the active agent for one turn:
// local tools, remote provider tools and one transfer tool per handoff.
func (e *execution) registry(ctx context.Context) (*tool.Registry, error) {
	a := e.active
	tools := a.Tools()

	for _, p := range a.Providers() {
		if e.r.opts.ManageProviders && !e.connected[p.Name()] {
			if err := p.Connect(ctx); err != nil {
				return nil, fmt.Errorf("connect provider %s: %w", p.Name(), err)
			}
			e.connected[p.Name()] = true
			e.providers = append(e.providers, p)
		}

		remote, err := p.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools of provider %s: %w", p.Name(), err)
		}
		tools = append(tools, remote...)
	}

	for _, h := range a.Handoffs() {
		tools = append(tools, h.Tool())
	}

	reg, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", a.Name(), err)
	}

	return reg, nil
}

func (e *execution) closeProviders() {
	for _, p := range e.providers {
		if err := p.Close(); err != nil {
			e.rc.LogWarn("provider.close.error", "provider", p.Name(), "error", err.Error())
		}
	}
	e.providers = nil
}

// generate calls the active agent's model. Malformed output (an unreadable
// response or a final answer failing the output schema) is retried once
// within the same turn.
func (e *execution) generate(ctx context.Context, reg *tool.Registry) (turnOutput, error) {
	a := e.active

	m := a.Model()
	if m == nil {
		m = e.r.opts.Model
	}
	if m == nil {
		return turnOutput{}, fmt.Errorf("runner: agent %q has no model", a.Name())
	}

	instructions, err := a.Instructions().Resolve(e.turnRC)
	if err != nil {
		return turnOutput{}, fmt.Errorf("resolve instructions of %q: %w", a.Name(), err)
	}

	req := model.Request{
		Instructions: instructions,
		History:      e.history.Clone(),
		Tools:        reg.Definitions(),
		Settings:     a.ModelSettings(),
		Stream:       e.emit != nil,
	}

	ot := a.OutputType()
	if ot != nil {
		req.OutputSchema = ot.ModelSchema()
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		// Deltas are only known to belong to the final answer once the
		// response settled without tool calls and parsed.
		var deltas []string

		var onDelta func(string) error
		if req.Stream {
			onDelta = func(d string) error {
				deltas = append(deltas, d)
				return nil
			}
		}

		mctx, span := e.r.tracer.Start(ctx, "agentrelay.model", trace.WithAttributes(
			attribute.String("agentrelay.agent", a.Name()),
			attribute.String("agentrelay.model", m.Info().Name),
			attribute.Int("agentrelay.attempt", attempt),
		))

		start := time.Now()
		resp, err := model.Collect(mctx, m, req, onDelta)
		logModelCall(e.turnRC.Logger(), m.Info().Name, resp.Usage, time.Since(start), err)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err != nil {
			if errors.Is(err, core.ErrMalformedOutput) {
				lastErr = err
				e.turnRC.LogWarn("model.output.malformed", "agent", a.Name(), "attempt", attempt, "error", err.Error())
				continue
			}
			return turnOutput{}, err
		}

		e.addUsage(resp.Usage)

		if len(resp.ToolCalls) > 0 {
			return turnOutput{resp: resp}, nil
		}

		var output any = resp.Text
		if ot != nil {
			parsed, perr := ot.Parse(resp.Text)
			if perr != nil {
				lastErr = &core.MalformedOutputError{Agent: a.Name(), Raw: resp.Text, Err: perr}
				e.turnRC.LogWarn("model.output.malformed", "agent", a.Name(), "attempt", attempt, "error", perr.Error())
				continue
			}
			output = parsed
		}

		return turnOutput{resp: resp, output: output, deltas: deltas}, nil
	}

	var mo *core.MalformedOutputError
	if errors.As(lastErr, &mo) {
		return turnOutput{}, mo
	}

	return turnOutput{}, &core.MalformedOutputError{Agent: a.Name(), Err: lastErr}
}

func (e *execution) addUsage(u *model.TokenUsage) {
	if u == nil {
		return
	}
	e.usage.PromptTokens += u.PromptTokens
	e.usage.CompletionTokens += u.CompletionTokens
	e.usage.TotalTokens += u.TotalTokens
}

// complete handles a final answer: output guardrails first, then the
// withheld stream deltas, the assistant item and persistence.
func (e *execution) complete(ctx context.Context, out turnOutput) (*Result, error) {
	name := e.active.Name()

	evals, err := guardrail.RunOutput(e.turnRC, name, out.output, e.outputGuardrails())
	e.outputEvals = append(e.outputEvals, evals...)
	if err != nil {
		e.recordTrip(err)
		return nil, err
	}

	for _, d := range out.deltas {
		if err := e.emitEvent(Event{Type: EventTextDelta, Agent: name, Delta: d}); err != nil {
			return nil, err
		}
	}

	if err := e.appendItems(core.NewAssistantMessage(name, out.resp.Text)); err != nil {
		return nil, err
	}

	if err := e.persist(ctx); err != nil {
		return nil, err
	}

	res := e.result()
	res.FinalOutput = out.output
	res.RawOutput = out.resp.Text

	return res, nil
}

func (e *execution) runInputGuardrails(input core.History) error {
	guards := append(e.starting.InputGuardrails(), e.r.opts.InputGuardrails...)
	if len(guards) == 0 {
		return nil
	}

	evals, err := guardrail.RunInput(e.turnRC, e.starting.Name(), input, guards)
	e.inputEvals = evals
	if err != nil {
		e.recordTrip(err)
	}
	return err
}

func (e *execution) outputGuardrails() []guardrail.Output {
	return append(e.active.OutputGuardrails(), e.r.opts.OutputGuardrails...)
}

func (e *execution) recordTrip(err error) {
	var gte *core.GuardrailTripwireError
	if errors.As(err, &gte) {
		e.r.opts.Metrics.RecordGuardrailTrip(string(gte.Kind), gte.Guardrail)
	}
}

// processBatch resolves and settles one batch of tool calls. With nil
// decisions (a fresh batch) any call requiring approval suspends the whole
// batch and a Result carrying the interruptions is returned. With decisions
// (a resumed batch) approved calls run, rejected ones are answered with a
// rejection error and calls without approval requirement run normally.
func (e *execution) processBatch(reg *tool.Registry, calls []core.ToolCall, decisions map[string]Decision) (*Result, error) {
	name := e.active.Name()

	resolutions := make([]tool.Resolution, len(calls))
	for i, c := range calls {
		resolutions[i] = reg.Resolve(c)
	}

	if decisions == nil {
		var interruptions []Interruption
		for _, res := range resolutions {
			if res.NeedsApproval() {
				interruptions = append(interruptions, Interruption{
					ID:        res.Call.ID,
					Kind:      InterruptionToolApproval,
					Agent:     name,
					ToolName:  res.Call.Name,
					Arguments: res.Call.Arguments,
				})
			}
		}
		if len(interruptions) > 0 {
			return e.suspend(calls, interruptions)
		}
	}

	items := make([]core.Item, len(calls))
	jobs := make([]toolJob, 0, len(calls))
	transferSeen := false

	for i, res := range resolutions {
		switch {
		case res.Err != nil:
			e.turnRC.LogWarn("tool.call.error", "tool", res.Call.Name, "code", res.Err.Code, "error", res.Err.Message)
			items[i] = core.NewToolResultItem(name, res.Call, nil, res.Err)
		case res.NeedsApproval() && !decisions[res.Call.ID].Approved:
			d := decisions[res.Call.ID]
			msg := rejectedMessage
			if d.Reason != "" {
				msg += ": " + d.Reason
			}
			rejected := core.NewToolError(res.Call.Name, msg, core.ToolErrorRejected)
			e.turnRC.LogInfo("tool.call.rejected", "tool", res.Call.Name, "call_id", res.Call.ID)
			e.r.opts.Metrics.RecordToolCall(res.Call.Name, 0, rejected)
			items[i] = core.NewToolResultItem(name, res.Call, nil, rejected)
		default:
			if _, ok := res.Transfer(); ok {
				if transferSeen {
					items[i] = core.NewToolResultItem(name, res.Call, ignoredHandoffOutput, nil)
					continue
				}
				transferSeen = true
			}
			jobs = append(jobs, toolJob{index: i, res: res})
		}
	}

	outcomes := e.r.executor.execute(e.turnRC, name, jobs)

	handoffAt := -1
	var next *agent.Agent

	for _, out := range outcomes {
		items[out.index] = out.item

		if handoffAt >= 0 || out.actions.TransferToAgent == nil {
			continue
		}

		target, err := e.handoffTarget(*out.actions.TransferToAgent)
		if err != nil {
			return nil, err
		}
		handoffAt, next = out.index, target
	}

	ordered := make([]core.Item, 0, len(items)+1)
	for i, it := range items {
		ordered = append(ordered, it)
		if i == handoffAt {
			ordered = append(ordered, core.NewHandoffItem(name, next.Name()))
		}
	}

	if err := e.appendItems(ordered...); err != nil {
		return nil, err
	}

	if next != nil {
		e.active = next
		e.r.opts.Metrics.RecordHandoff(name, next.Name())
		e.turnRC.LogInfo("handoff.applied", "from_agent", name, "to_agent", next.Name())
		if err := e.emitEvent(Event{Type: EventAgentUpdated, Agent: next.Name()}); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (e *execution) handoffTarget(name string) (*agent.Agent, error) {
	for _, h := range e.active.Handoffs() {
		if h.TargetName() != name {
			continue
		}
		if t := h.Target(); t != nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not a handoff target of %q", core.ErrAgentNotFound, name, e.active.Name())
}

func (e *execution) suspend(calls []core.ToolCall, interruptions []Interruption) (*Result, error) {
	for _, in := range interruptions {
		e.r.opts.Metrics.RecordInterruption(in.ToolName)
		e.turnRC.LogInfo("run.interrupted", "agent", in.Agent, "tool", in.ToolName, "call_id", in.ID)
	}

	if err := e.persist(e.turnRC.Context); err != nil {
		return nil, err
	}

	state := &RunState{
		RunID:          e.runID,
		StartingAgent:  e.starting.Name(),
		ActiveAgent:    e.active.Name(),
		Turn:           e.limiter.Count(),
		MaxTurns:       e.maxTurns,
		History:        e.history.Clone(),
		PendingCalls:   append([]core.ToolCall(nil), calls...),
		Interruptions:  interruptions,
		Decisions:      map[string]Decision{},
		Context:        e.value,
		ConversationID: e.conversationID,
		PersistedLen:   e.persistedLen,
	}

	res := e.result()
	res.Interruptions = interruptions
	res.State = state

	return res, nil
}

func (e *execution) persist(ctx context.Context) error {
	store := e.r.opts.SessionStore
	if e.conversationID == "" || store == nil {
		return nil
	}

	items := e.history.Since(e.persistedLen)
	if len(items) == 0 {
		return nil
	}

	if err := store.Append(ctx, e.conversationID, items); err != nil {
		return fmt.Errorf("persist conversation %q: %w", e.conversationID, err)
	}
	e.persistedLen = len(e.history)

	return nil
}

func (e *execution) appendItems(items ...core.Item) error {
	e.history = e.history.Append(items...)
	for i := range items {
		it := items[i]
		if err := e.emitEvent(Event{Type: EventItem, Agent: it.Agent, Item: &it}); err != nil {
			return err
		}
	}
	return nil
}

func (e *execution) emitEvent(ev Event) error {
	if e.emit == nil {
		return nil
	}
	return e.emit(ev)
}
