package core

import (
	"errors"
	"fmt"
)

var (
	// ErrGuardrailTripwire matches every *GuardrailTripwireError.
	ErrGuardrailTripwire = errors.New("guardrail tripwire triggered")
	// ErrMalformedOutput marks model output that could not be interpreted.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrMaxTurnsExceeded matches every *MaxTurnsExceededError.
	ErrMaxTurnsExceeded = errors.New("max turns exceeded")
	// ErrTransient marks failures of a collaborator that may succeed on retry.
	ErrTransient = errors.New("transient failure")
	// ErrUnresolvedInterruptions is returned when a run is resumed before every
	// interruption received a decision.
	ErrUnresolvedInterruptions = errors.New("unresolved interruptions")
	// ErrAgentNotFound is returned when a run state names an agent that cannot
	// be reached from the starting agent.
	ErrAgentNotFound = errors.New("agent not found")
)

// GuardrailKind tells input from output guardrails.
type GuardrailKind string

const (
	GuardrailInput  GuardrailKind = "input"
	GuardrailOutput GuardrailKind = "output"
)

// GuardrailTripwireError aborts a run when a guardrail rejects its input or
// output. OutputInfo carries whatever diagnostic the guardrail reported.
type GuardrailTripwireError struct {
	Kind       GuardrailKind
	Guardrail  string
	Agent      string
	OutputInfo any
}

func (e *GuardrailTripwireError) Error() string {
	return fmt.Sprintf("%s guardrail %q triggered tripwire for agent %q", e.Kind, e.Guardrail, e.Agent)
}

// Is makes errors.Is(err, ErrGuardrailTripwire) hold.
func (e *GuardrailTripwireError) Is(target error) bool { return target == ErrGuardrailTripwire }

// Tool error codes.
const (
	ToolErrorValidation = "VALIDATION_ERROR"
	ToolErrorExecution  = "EXECUTION_ERROR"
	ToolErrorNotFound   = "NOT_FOUND"
	ToolErrorRejected   = "REJECTED"
	ToolErrorPanic      = "PANIC"
)

// ToolError is a recoverable tool failure. It is converted into a tool_result
// item so the model can observe and react to it; it never aborts a run.
type ToolError struct {
	Tool    string
	Message string
	Code    string
	Details any
	Err     error
}

// NewToolError creates a ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// MalformedOutputError reports a model response that stayed uninterpretable
// after the single retry.
type MalformedOutputError struct {
	Agent string
	Raw   string
	Err   error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed output from agent %q: %v", e.Agent, e.Err)
	}
	return fmt.Sprintf("malformed output from agent %q", e.Agent)
}

func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// MaxTurnsExceededError is returned when a run reaches its turn limit
// without a final answer.
type MaxTurnsExceededError struct {
	MaxTurns int
}

func (e *MaxTurnsExceededError) Error() string {
	return fmt.Sprintf("max turns (%d) exceeded", e.MaxTurns)
}

func (e *MaxTurnsExceededError) Is(target error) bool { return target == ErrMaxTurnsExceeded }

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{e.err, ErrTransient} }

// Transient marks err as retryable. It returns nil for a nil err.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
