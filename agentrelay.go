// Package agentrelay provides a high-level façade over the runner and its
// collaborators (sessions, metrics, logging) for building multi-agent
// applications. Most applications interact with this package by:
//  1. Declaring agents with agent.New (model, instructions, tools, handoffs)
//  2. Creating an AgentRelay via New() or using the package level helpers
//  3. Running an agent (Run, RunStreamed) and resuming interrupted runs
//     once their tool approvals are decided (Resume, RunWithApprover)
//
// The façade delegates orchestration to runner.Runner while keeping setup
// concise. Defaults are suitable for local development and tests:
// conversations are kept in memory and logging is disabled.
package agentrelay

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/metrics"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/session"
)

// Options configures an AgentRelay.
type Options struct {
	// MaxTurns bounds the model turns of a run (default 10).
	MaxTurns int

	// MaxParallelTools bounds concurrently executing tool calls of one
	// batch. Zero means unbounded.
	MaxParallelTools int

	// SessionStore keeps conversations addressed with
	// runner.WithConversationID (defaults to an in-memory store).
	SessionStore session.Store

	// Metrics records Prometheus metrics when set.
	Metrics *metrics.Metrics

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Approver decides one interruption. Returning false rejects the call with
// the given reason.
type Approver func(ctx context.Context, in runner.Interruption) (approved bool, reason string, err error)

// AgentRelay is the high-level façade aggregating a runner and its services.
type AgentRelay struct {
	opts   Options
	runner *runner.Runner
}

// New creates a new AgentRelay with optional overrides.
func New(optFns ...func(o *Options)) *AgentRelay {
	opts := Options{
		MaxTurns:     10,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(func(o *runner.Options) {
		o.MaxTurns = opts.MaxTurns
		o.MaxParallelTools = opts.MaxParallelTools
		o.SessionStore = opts.SessionStore
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	})

	return &AgentRelay{opts: opts, runner: r}
}

// Runner returns the underlying runner, e.g. for runner.AgentTool.
func (m *AgentRelay) Runner() *runner.Runner { return m.runner }

// Run runs a on input until it produces a final output or is interrupted.
func (m *AgentRelay) Run(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *runner.RunOptions)) (*runner.Result, error) {
	return m.runner.Run(ctx, a, input, optFns...)
}

// RunStreamed runs a on input in the background and streams its progress.
func (m *AgentRelay) RunStreamed(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *runner.RunOptions)) *runner.Stream {
	return m.runner.RunStreamed(ctx, a, input, optFns...)
}

// Resume continues an interrupted run whose interruptions are all decided.
func (m *AgentRelay) Resume(ctx context.Context, startingAgent *agent.Agent, state *runner.RunState, optFns ...func(o *runner.RunOptions)) (*runner.Result, error) {
	return m.runner.Resume(ctx, startingAgent, state, optFns...)
}

// RunWithApprover runs a and resolves every interruption with approve,
// resuming until the run completes or fails.
func (m *AgentRelay) RunWithApprover(ctx context.Context, a *agent.Agent, input string, approve Approver, optFns ...func(o *runner.RunOptions)) (*runner.Result, error) {
	if approve == nil {
		return nil, errors.New("agentrelay: nil approver")
	}

	res, err := m.runner.Run(ctx, a, input, optFns...)
	for err == nil && res.Interrupted() {
		decisions := make([]runner.Decision, 0, len(res.Interruptions))
		for _, in := range res.Interruptions {
			ok, reason, aerr := approve(ctx, in)
			if aerr != nil {
				return res, aerr
			}
			decisions = append(decisions, runner.Decision{InterruptionID: in.ID, Approved: ok, Reason: reason})
		}

		res, err = m.runner.ResumeWithDecisions(ctx, a, res.State, decisions)
	}

	return res, err
}

var (
	defaultOnce  sync.Once
	defaultRelay *AgentRelay
)

// Default returns the process wide AgentRelay used by the package level
// helpers.
func Default() *AgentRelay {
	defaultOnce.Do(func() { defaultRelay = New() })
	return defaultRelay
}

// Run runs a with the default AgentRelay.
func Run(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *runner.RunOptions)) (*runner.Result, error) {
	return Default().Run(ctx, a, input, optFns...)
}

// RunStreamed streams a run of a with the default AgentRelay.
func RunStreamed(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *runner.RunOptions)) *runner.Stream {
	return Default().RunStreamed(ctx, a, input, optFns...)
}

// Resume continues an interrupted run with the default AgentRelay.
func Resume(ctx context.Context, startingAgent *agent.Agent, state *runner.RunState, optFns ...func(o *runner.RunOptions)) (*runner.Result, error) {
	return Default().Resume(ctx, startingAgent, state, optFns...)
}
