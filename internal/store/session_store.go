// Package store persists conversation sessions, backed by either an
// in-process map (MemorySessionStore) or sqlite (SQLiteSessionStore).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weave-logic-ai/clawft/internal/assemble"
)

// SessionStore is the persistence contract for a session's message tail:
// load the most recent turns, append a new one, or clear a session
// entirely.
type SessionStore interface {
	LoadTail(ctx context.Context, sessionKey string, limit int) ([]assemble.Message, error)
	Append(ctx context.Context, sessionKey string, msg assemble.Message) error
	Clear(ctx context.Context, sessionKey string) error
}

// MemorySessionStore is an in-process SessionStore, used by tests and the
// CLI chat command.
type MemorySessionStore struct {
	mu sync.Mutex
	sessions map[string][]assemble.Message
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]assemble.Message)}
}

func (s *MemorySessionStore) LoadTail(_ context.Context, sessionKey string, limit int) ([]assemble.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sessions[sessionKey]
	if limit <= 0 || len(msgs) <= limit {
		out := make([]assemble.Message, len(msgs))
		copy(out, msgs)
		return out, nil
	}
	out := make([]assemble.Message, limit)
	copy(out, msgs[len(msgs)-limit:])
	return out, nil
}

func (s *MemorySessionStore) Append(_ context.Context, sessionKey string, msg assemble.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey] = append(s.sessions[sessionKey], msg)
	return nil
}

func (s *MemorySessionStore) Clear(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey)
	return nil
}

// SQLiteSessionStore persists sessions to a local sqlite database, for
// long-running deployments where the CLI process restarts between turns.
type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore opens (creating if absent) a sqlite database at
// path and ensures the session_messages table exists.
func NewSQLiteSessionStore(path string) (*SQLiteSessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite session store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer, avoids SQLITE_BUSY under load

	const schema = `
	CREATE TABLE IF NOT EXISTS session_messages (
		session_key TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_call_id TEXT,
		tool_calls TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (session_key, seq)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session store schema: %w", err)
	}
	return &SQLiteSessionStore{db: db}, nil
}

func (s *SQLiteSessionStore) Close() error { return s.db.Close() }

func (s *SQLiteSessionStore) LoadTail(ctx context.Context, sessionKey string, limit int) ([]assemble.Message, error) {
	query := `SELECT role, content, tool_call_id, tool_calls FROM session_messages
	WHERE session_key = ? ORDER BY seq DESC`
	args := []interface{}{sessionKey}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session tail: %w", err)
	}
	defer rows.Close()

	var reversed []assemble.Message
	for rows.Next() {
		var m assemble.Message
		var toolCallID sql.NullString
		var toolCallsJSON sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &toolCallID, &toolCallsJSON); err != nil {
			return nil, fmt.Errorf("scan session message: %w", err)
		}
		m.ToolCallID = toolCallID.String
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			_ = json.Unmarshal([]byte(toolCallsJSON.String), &m.ToolCalls)
		}
		reversed = append(reversed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]assemble.Message, len(reversed))
	for i, m := range reversed {
		out[len(reversed)-1-i] = m
	}
	return out, nil
}

func (s *SQLiteSessionStore) Append(ctx context.Context, sessionKey string, msg assemble.Message) error {
	var toolCallsJSON []byte
	if len(msg.ToolCalls) > 0 {
		var err error
		toolCallsJSON, err = json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
	}

	const insert = `INSERT INTO session_messages (session_key, seq, role, content, tool_call_id, tool_calls, created_at)
	VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM session_messages WHERE session_key = ?), ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, insert, sessionKey, sessionKey, msg.Role, msg.Content,
		nullIfEmpty(msg.ToolCallID), nullIfEmptyBytes(toolCallsJSON), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append session message: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Clear(ctx context.Context, sessionKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_messages WHERE session_key = ?`, sessionKey)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfEmptyBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
