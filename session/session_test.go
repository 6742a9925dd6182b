package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/testutil"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewInMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_AppendLoadClear(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			h, err := s.Load(ctx, "conv-1")
			require.NoError(t, err)
			assert.Empty(t, h)

			h = testutil.NewHistoryBuilder("Assistant").
				User("weather?").
				Call("c1", "get_weather", `{"city":"Oslo"}`).
				Result("c1", "sunny").
				Assistant("It is sunny.").
				Build()
			first, second := h[:2], h[2:]

			require.NoError(t, s.Append(ctx, "conv-1", first))
			require.NoError(t, s.Append(ctx, "conv-1", second))
			require.NoError(t, s.Append(ctx, "conv-2", core.NewHistory("other")))

			h, err = s.Load(ctx, "conv-1")
			require.NoError(t, err)
			require.Len(t, h, 4)
			assert.Equal(t, core.ItemUserMessage, h[0].Kind)
			assert.Equal(t, "c1", h[1].ToolCall.ID)
			assert.Equal(t, "sunny", h[2].ToolResult.Output)
			assert.Equal(t, "It is sunny.", h.LastAssistantText())
			assert.Equal(t, first[0].ID, h[0].ID)

			require.NoError(t, s.Clear(ctx, "conv-1"))
			h, err = s.Load(ctx, "conv-1")
			require.NoError(t, err)
			assert.Empty(t, h)

			h, err = s.Load(ctx, "conv-2")
			require.NoError(t, err)
			assert.Len(t, h, 1)
		})
	}
}

func TestStore_EmptyConversationID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "")
			assert.ErrorIs(t, err, ErrEmptyConversationID)
			assert.ErrorIs(t, s.Append(context.Background(), "", core.NewHistory("x")), ErrEmptyConversationID)
		})
	}
}

func TestInMemoryStore_LoadReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append(context.Background(), "c", core.NewHistory("hello")))

	h, err := s.Load(context.Background(), "c")
	require.NoError(t, err)
	h[0].Text = "mutated"

	h, err = s.Load(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "hello", h[0].Text)
	assert.Equal(t, []string{"c"}, s.Conversations())
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), "c", core.NewHistory("persisted")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	h, err := s.Load(context.Background(), "c")
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "persisted", h[0].Text)
}

func TestSQLiteStore_AppendIsAtomic(t *testing.T) {
	ctx := context.Background()

	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(ctx, "c", core.NewHistory("kept")))

	unencodable := core.Item{
		ID:         core.NewID(),
		Kind:       core.ItemToolResult,
		ToolResult: &core.ToolResult{CallID: "c1", Name: "stream", Output: make(chan int)},
	}
	err = s.Append(ctx, "c", core.History{core.NewUserMessage("dropped"), unencodable})
	require.ErrorContains(t, err, "failed to encode item")

	h, err := s.Load(ctx, "c")
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "kept", h[0].Text)

	require.NoError(t, s.Append(ctx, "c", core.NewHistory("after")))
	h, err = s.Load(ctx, "c")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, "after", h[1].Text)
}
