// Package logging provides a minimal logging interface and adapters for agentrelay.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the runner, tools and model adapters use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping any *slog.Logger
//   - RelayLogger with run scoped attributes and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	r := runner.New(func(o *runner.Options) { o.Logger = logger })
//
// Log lines use dotted event names (run.start, tool.call.error, handoff.applied)
// followed by key/value pairs.
package logging
