package session

import (
	"context"
	"errors"

	"github.com/hupe1980/agentrelay/core"
)

// ErrEmptyConversationID is returned for operations without a conversation id.
var ErrEmptyConversationID = errors.New("session: empty conversation id")

// Store persists conversation histories.
type Store interface {
	// Load returns the stored history, empty for unknown conversations.
	Load(ctx context.Context, conversationID string) (core.History, error)
	// Append adds items to the end of the stored history.
	Append(ctx context.Context, conversationID string, items core.History) error
	// Clear removes the stored history.
	Clear(ctx context.Context, conversationID string) error
}
