package runner

import (
	"time"

	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
)

// scopedLogger binds a RelayLogger to the run; other loggers are returned
// unchanged.
func scopedLogger(l logging.Logger, runID, agentName string) logging.Logger {
	if rl, ok := l.(*logging.RelayLogger); ok {
		return rl.WithComponent("runner").WithRun(runID, agentName)
	}
	return l
}

func logToolCall(l logging.Logger, tool string, dur time.Duration, err error) {
	if rl, ok := l.(*logging.RelayLogger); ok {
		rl.LogToolCall(tool, dur, err)
		return
	}
	if err != nil {
		l.Warn("tool.call.failed", "tool", tool, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.Debug("tool.call.completed", "tool", tool, "duration_ms", dur.Milliseconds())
}

func logModelCall(l logging.Logger, name string, usage *model.TokenUsage, dur time.Duration, err error) {
	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
	}
	if rl, ok := l.(*logging.RelayLogger); ok {
		rl.LogModelCall(name, tokens, dur, err)
		return
	}
	if err != nil {
		l.Warn("model.call.failed", "model", name, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.Debug("model.call.completed", "model", name, "tokens", tokens, "duration_ms", dur.Milliseconds())
}

func logRun(l logging.Logger, turns int, dur time.Duration, status string, err error) {
	if rl, ok := l.(*logging.RelayLogger); ok {
		rl.LogRun(turns, dur, status, err)
		return
	}
	args := []any{"turns", turns, "duration_ms", dur.Milliseconds(), "status", status}
	if err != nil {
		l.Error("run.failed", append(args, "error", err.Error())...)
		return
	}
	l.Info("run.finished", args...)
}
