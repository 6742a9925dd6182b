package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/hupe1980/agentrelay/core"
)

// SQLiteStore persists conversations in a SQLite database, one JSON encoded
// item per row ordered by sequence number.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn. An empty dsn opens
// a private in-memory database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversation_items (
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (conversation_id, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create conversation_items table: %w", err)
	}

	return nil
}

// Load returns the stored history in insertion order.
func (s *SQLiteStore) Load(ctx context.Context, conversationID string) (core.History, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM conversation_items WHERE conversation_id = ? ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	history := core.History{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		var item core.Item
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}

		history = append(history, item)
	}

	return history, rows.Err()
}

// Append stores items atomically after the existing ones.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, items core.History) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM conversation_items WHERE conversation_id = ?`,
		conversationID,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversation_items (conversation_id, seq, item_id, kind, payload)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode item: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, conversationID, next+int64(i), item.ID, string(item.Kind), string(payload)); err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	return tx.Commit()
}

// Clear deletes all items of the conversation.
func (s *SQLiteStore) Clear(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_items WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
