package core

import "sync"

// TurnLimiter enforces the maximum number of turns (model calls) of a run.
// A run resumed from a persisted state continues the count where it stopped.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a limiter allowing max turns, starting from count
// turns already taken. If max <= 0, unlimited turns are allowed.
func NewTurnLimiter(max, count int) *TurnLimiter {
	return &TurnLimiter{max: max, count: count}
}

// Increment starts a new turn and returns a *MaxTurnsExceededError once the
// limit would be exceeded.
func (l *TurnLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.count >= l.max {
		return &MaxTurnsExceededError{MaxTurns: l.max}
	}
	l.count++

	return nil
}

// Count returns the number of turns taken.
func (l *TurnLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many turns are left before hitting the limit.
func (l *TurnLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max <= 0 {
		return -1 // unlimited
	}

	return l.max - l.count
}
