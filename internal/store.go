package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	messages      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
`

// ConversationStore persists conversations in a SQLite database, one row
// per conversation id. Message bodies live in a JSON column that listing
// queries never touch, so summaries stay cheap regardless of conversation
// size.
type ConversationStore struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the conversation database at path.
func OpenStore(path string) (*ConversationStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &ConversationStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ConversationStore) Close() error {
	return s.db.Close()
}

// Save upserts a conversation and its summary columns. Saving is
// idempotent per id. Empty conversations are never written.
func (s *ConversationStore) Save(conv *Conversation) error {
	if conv == nil || len(conv.Messages) == 0 {
		return &PersistenceError{Op: "save", ID: idOf(conv), Err: errors.New("refusing to save empty conversation")}
	}

	body, err := json.Marshal(conv.Messages)
	if err != nil {
		return &PersistenceError{Op: "save", ID: conv.ID, Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO conversations (id, title, created_at, updated_at, message_count, messages)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count,
			messages = excluded.messages`,
		conv.ID,
		conv.Title,
		conv.CreatedAt.UTC().Format(time.RFC3339Nano),
		conv.UpdatedAt.UTC().Format(time.RFC3339Nano),
		len(conv.Messages),
		string(body),
	)
	if err != nil {
		return &PersistenceError{Op: "save", ID: conv.ID, Err: err}
	}
	return nil
}

// LoadSummaries returns the listing projection for every stored
// conversation, most recently updated first. Message bodies are not read.
func (s *ConversationStore) LoadSummaries() ([]ConversationSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, title, created_at, updated_at, message_count
		FROM conversations
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, &PersistenceError{Op: "load", ID: "summaries", Err: err}
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var sum ConversationSummary
		var created, updated string
		if err := rows.Scan(&sum.ID, &sum.Title, &created, &updated, &sum.MessageCount); err != nil {
			return nil, &PersistenceError{Op: "load", ID: "summaries", Err: err}
		}
		sum.CreatedAt = parseStoredTime(created)
		sum.UpdatedAt = parseStoredTime(updated)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "load", ID: "summaries", Err: err}
	}

	return summaries, nil
}

// LoadFull returns the complete conversation for id, including messages,
// or ErrNotFound.
func (s *ConversationStore) LoadFull(id string) (*Conversation, error) {
	var conv Conversation
	var created, updated, body string
	err := s.db.QueryRow(`
		SELECT id, title, created_at, updated_at, messages
		FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Title, &created, &updated, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", ID: id, Err: err}
	}

	conv.CreatedAt = parseStoredTime(created)
	conv.UpdatedAt = parseStoredTime(updated)
	if err := json.Unmarshal([]byte(body), &conv.Messages); err != nil {
		return nil, &PersistenceError{Op: "load", ID: id, Err: err}
	}

	return &conv, nil
}

// Delete removes the conversation for id. Deleting an absent id is not an
// error.
func (s *ConversationStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return &PersistenceError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func idOf(conv *Conversation) string {
	if conv == nil {
		return ""
	}
	return conv.ID
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
