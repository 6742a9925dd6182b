package runner

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/metrics"
	"github.com/hupe1980/agentrelay/tool"
)

// toolJob is one resolved call scheduled for execution. index is the
// position of the call within its batch.
type toolJob struct {
	index int
	res   tool.Resolution
}

// toolOutcome is the settled result of a toolJob plus the actions the tool
// raised through its ToolContext.
type toolOutcome struct {
	index   int
	item    core.Item
	actions core.ToolActions
}

// toolExecutor executes a batch of resolved tool calls possibly in parallel.
// It must:
//   - Respect rc.Context cancellation before starting a call
//   - Never panic (recover internally and report PANIC tool errors)
//   - Produce exactly one outcome per job, in job order
type toolExecutor struct {
	maxParallel int
	tracer      trace.Tracer
	metrics     *metrics.Metrics
}

func (x *toolExecutor) execute(rc *core.RunContext, agentName string, jobs []toolJob) []toolOutcome {
	n := len(jobs)
	if n == 0 {
		return nil
	}

	outcomes := make([]toolOutcome, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		outcomes[0] = x.executeOne(rc, agentName, jobs[0])
		return outcomes
	}

	maxPar := x.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			outcomes[idx] = x.executeOne(rc, agentName, jobs[idx])
		}(i)
	}

	wg.Wait()

	rc.LogDebug(
		"tool.batch.complete",
		"agent", agentName,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return outcomes
}

func (x *toolExecutor) executeOne(rc *core.RunContext, agentName string, job toolJob) toolOutcome {
	call := job.res.Call

	if err := rc.Err(); err != nil {
		toolErr := &core.ToolError{Tool: call.Name, Message: "not started: " + err.Error(), Code: core.ToolErrorExecution, Err: err}
		return toolOutcome{index: job.index, item: core.NewToolResultItem(agentName, call, nil, toolErr)}
	}

	ctx, span := x.tracer.Start(rc.Context, "agentrelay.tool", trace.WithAttributes(
		attribute.String("agentrelay.agent", agentName),
		attribute.String("agentrelay.tool", call.Name),
		attribute.String("agentrelay.tool_call_id", call.ID),
	))
	defer span.End()

	toolCtx := core.NewToolContext(rc.WithContext(ctx), call.ID)

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = &core.ToolError{
					Tool:    call.Name,
					Message: fmt.Sprintf("panic: %v", r),
					Code:    core.ToolErrorPanic,
					Err:     panicError(r),
				}
				rc.LogError("tool.call.panic", "agent", agentName, "tool", call.Name, "recover", r)
			}
		}()
		result, err = job.res.Tool.Call(toolCtx, job.res.Args)
	}()
	dur := time.Since(start)

	x.metrics.RecordToolCall(call.Name, dur, err)
	logToolCall(rc.Logger(), call.Name, dur, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return toolOutcome{
		index:   job.index,
		item:    core.NewToolResultItem(agentName, call, result, err),
		actions: toolCtx.Actions(),
	}
}

// panicError converts a recovered panic value to an error carrying the stack.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
