package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/core"
)

// ErrStateConsumed is returned when a RunState is resumed a second time.
var ErrStateConsumed = errors.New("runner: run state already resumed")

// InterruptionKind classifies why a run was suspended.
type InterruptionKind string

// InterruptionToolApproval marks a tool call awaiting approval.
const InterruptionToolApproval InterruptionKind = "tool_approval"

// Interruption is a tool call paused until the caller approves or rejects it.
// ID equals the id of the tool call.
type Interruption struct {
	ID        string           `json:"id"`
	Kind      InterruptionKind `json:"kind"`
	Agent     string           `json:"agent"`
	ToolName  string           `json:"tool_name"`
	Arguments string           `json:"arguments"`
}

// Decision resolves one interruption.
type Decision struct {
	InterruptionID string `json:"interruption_id"`
	Approved       bool   `json:"approved"`
	Reason         string `json:"reason,omitempty"`
}

// RunState is the serializable snapshot of a suspended run.
type RunState struct {
	RunID          string              `json:"run_id"`
	StartingAgent  string              `json:"starting_agent"`
	ActiveAgent    string              `json:"active_agent"`
	Turn           int                 `json:"turn"`
	MaxTurns       int                 `json:"max_turns"`
	History        core.History        `json:"history"`
	PendingCalls   []core.ToolCall     `json:"pending_calls"`
	Interruptions  []Interruption      `json:"interruptions"`
	Decisions      map[string]Decision `json:"decisions"`
	Context        any                 `json:"context,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
	PersistedLen   int                 `json:"persisted_len,omitempty"`

	mu       sync.Mutex
	consumed atomic.Bool
}

// UnmarshalRunState restores a RunState produced by Marshal. The ambient
// context comes back as decoded JSON; pass WithContext on resume to restore
// a typed value.
func UnmarshalRunState(data []byte) (*RunState, error) {
	s := &RunState{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	if s.Decisions == nil {
		s.Decisions = map[string]Decision{}
	}
	return s, nil
}

// Marshal serializes the state as JSON.
func (s *RunState) Marshal() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s)
}

// Approve approves the interruption with the given id.
func (s *RunState) Approve(id string) error {
	return s.Decide(Decision{InterruptionID: id, Approved: true})
}

// Reject rejects the interruption with the given id. The reason is shown to
// the model together with the rejection.
func (s *RunState) Reject(id, reason string) error {
	return s.Decide(Decision{InterruptionID: id, Reason: reason})
}

// Decide records d. Deciding an interruption again replaces the earlier
// decision.
func (s *RunState) Decide(d Decision) error {
	if s.consumed.Load() {
		return ErrStateConsumed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasInterruption(d.InterruptionID) {
		return fmt.Errorf("runner: unknown interruption %q", d.InterruptionID)
	}
	if s.Decisions == nil {
		s.Decisions = map[string]Decision{}
	}
	s.Decisions[d.InterruptionID] = d

	return nil
}

// Pending returns the interruptions without a decision.
func (s *RunState) Pending() []Interruption {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []Interruption
	for _, in := range s.Interruptions {
		if _, ok := s.Decisions[in.ID]; !ok {
			pending = append(pending, in)
		}
	}
	return pending
}

func (s *RunState) hasInterruption(id string) bool {
	for _, in := range s.Interruptions {
		if in.ID == id {
			return true
		}
	}
	return false
}

func (s *RunState) decisions() map[string]Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Decision, len(s.Decisions))
	for k, v := range s.Decisions {
		out[k] = v
	}
	return out
}
