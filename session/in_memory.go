package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// InMemoryStore is a volatile Store keeping histories in a process local map.
// It is safe for concurrent access and best suited for tests or ephemeral demo
// servers. Loaded histories are cloned to prevent external mutation of
// internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]core.History
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]core.History)}
}

// Load returns a clone of the stored history.
func (s *InMemoryStore) Load(_ context.Context, conversationID string) (core.History, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.conversations[conversationID].Clone(), nil
}

// Append adds items to the conversation, creating it lazily.
func (s *InMemoryStore) Append(_ context.Context, conversationID string, items core.History) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conversationID] = s.conversations[conversationID].Append(items...)

	return nil
}

// Clear drops the conversation.
func (s *InMemoryStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationID)

	return nil
}

// Conversations returns the ids of all stored conversations.
func (s *InMemoryStore) Conversations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}

	return ids
}
