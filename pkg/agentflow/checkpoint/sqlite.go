package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/10xHub/agentflow-cli/pkg/agentflow/config"
	"github.com/10xHub/agentflow-cli/pkg/agentflow/state"
)

// SQLiteStore persists thread state, messages, and metadata to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite-backed store.
// The path should be a file path (e.g., "./threads.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single pooled connection: writes are serialized by the store's
	// mutex anyway, and ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS agent_states (
			thread_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (thread_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_state_cache (
			thread_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (thread_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			thread_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			data BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (thread_id, user_id, message_id)
		)`,
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			metadata BLOB,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (thread_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread
			ON messages(thread_id, user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_user
			ON threads(user_id, updated_at)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// GetState implements Store.
func (s *SQLiteStore) GetState(ctx context.Context, cfg config.Config) (*state.AgentState, error) {
	return s.readState(ctx, cfg, "agent_states")
}

// GetStateCache implements Store.
func (s *SQLiteStore) GetStateCache(ctx context.Context, cfg config.Config) (*state.AgentState, error) {
	return s.readState(ctx, cfg, "agent_state_cache")
}

func (s *SQLiteStore) readState(ctx context.Context, cfg config.Config, table string) (*state.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM `+table+` WHERE thread_id = ? AND user_id = ?`,
		scope.ThreadID, scope.UserID,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var st state.AgentState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// PutState implements Store. The state is written to both the primary
// table and the cache table, and the thread row is created or touched,
// all in one transaction.
func (s *SQLiteStore) PutState(ctx context.Context, cfg config.Config, st *state.AgentState) (*state.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	scope := ScopeFrom(cfg)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save state: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"agent_states", "agent_state_cache"} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO `+table+` (thread_id, user_id, data, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(thread_id, user_id) DO UPDATE SET
				data = excluded.data,
				updated_at = excluded.updated_at
		`, scope.ThreadID, scope.UserID, data, now); err != nil {
			return nil, fmt.Errorf("save state: %w", err)
		}
	}
	if err := touchThreadTx(ctx, tx, scope, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save state: %w", err)
	}
	return st, nil
}

// ClearState implements Store.
func (s *SQLiteStore) ClearState(ctx context.Context, cfg config.Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_states WHERE thread_id = ? AND user_id = ?`,
		scope.ThreadID, scope.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("clear state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_state_cache WHERE thread_id = ? AND user_id = ?`,
		scope.ThreadID, scope.UserID,
	); err != nil {
		return false, fmt.Errorf("clear state cache: %w", err)
	}

	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// EvictState drops only the primary copy of a thread's state, leaving the
// cache table untouched. Mirrors a retention job expiring the primary row.
func (s *SQLiteStore) EvictState(ctx context.Context, cfg config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_states WHERE thread_id = ? AND user_id = ?`,
		scope.ThreadID, scope.UserID,
	)
	if err != nil {
		return fmt.Errorf("evict state: %w", err)
	}
	return nil
}

// PutMessages implements Store.
func (s *SQLiteStore) PutMessages(ctx context.Context, cfg config.Config, msgs []state.Message, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save messages: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		if metadata != nil && msg.Metadata == nil {
			msg.Metadata = metadata
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", msg.MessageID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (thread_id, user_id, message_id, role, text, data, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(thread_id, user_id, message_id) DO UPDATE SET
				role = excluded.role,
				text = excluded.text,
				data = excluded.data
		`, scope.ThreadID, scope.UserID, msg.MessageID, string(msg.Role), msg.Text(), data, now); err != nil {
			return fmt.Errorf("save message %s: %w", msg.MessageID, err)
		}
	}
	if err := touchThreadTx(ctx, tx, scope, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save messages: %w", err)
	}
	return nil
}

// GetMessage implements Store.
func (s *SQLiteStore) GetMessage(ctx context.Context, cfg config.Config, messageID string) (*state.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM messages WHERE thread_id = ? AND user_id = ? AND message_id = ?`,
		scope.ThreadID, scope.UserID, messageID,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}

	var msg state.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// ListMessages implements Store.
func (s *SQLiteStore) ListMessages(ctx context.Context, cfg config.Config, search string, offset, limit int) ([]state.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	scope := ScopeFrom(cfg)
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM messages
		WHERE thread_id = ? AND user_id = ?
			AND (? = '' OR text LIKE '%' || ? || '%' ESCAPE '\')
		ORDER BY rowid
		LIMIT ? OFFSET ?
	`, scope.ThreadID, scope.UserID, search, escapeLike(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []state.Message
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg state.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// DeleteMessage implements Store.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, cfg config.Config, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id = ? AND user_id = ? AND message_id = ?`,
		scope.ThreadID, scope.UserID, messageID,
	)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// GetThread implements Store.
func (s *SQLiteStore) GetThread(ctx context.Context, cfg config.Config) (*state.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	th, err := scanThread(s.db.QueryRowContext(ctx, `
		SELECT thread_id, user_id, name, metadata, updated_at
		FROM threads WHERE thread_id = ? AND user_id = ?
	`, scope.ThreadID, scope.UserID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	return th, nil
}

// ListThreads implements Store.
func (s *SQLiteStore) ListThreads(ctx context.Context, cfg config.Config, search string, offset, limit int) ([]state.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1
	}

	userID := cfg.String(KeyUserID, "")
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, user_id, name, metadata, updated_at
		FROM threads
		WHERE user_id = ?
			AND (? = '' OR name LIKE '%' || ? || '%' ESCAPE '\')
		ORDER BY updated_at DESC, thread_id DESC
		LIMIT ? OFFSET ?
	`, userID, search, escapeLike(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []state.Thread
	for rows.Next() {
		th, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, *th)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return threads, nil
}

// CleanThread implements Store. Removes state, cached state, messages,
// and thread metadata in one transaction.
func (s *SQLiteStore) CleanThread(ctx context.Context, cfg config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	scope := ScopeFrom(cfg)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clean thread: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"agent_states", "agent_state_cache", "messages", "threads"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE thread_id = ? AND user_id = ?`,
			scope.ThreadID, scope.UserID,
		); err != nil {
			return fmt.Errorf("clean thread: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clean thread: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// escapeLike escapes LIKE wildcards so a search term matches as a
// literal substring, the same contract the memory store gives.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*state.Thread, error) {
	var th state.Thread
	var metadata []byte
	var updatedAt string
	if err := row.Scan(&th.ThreadID, &th.UserID, &th.Name, &metadata, &updatedAt); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &th.Metadata); err != nil {
			return nil, fmt.Errorf("decode thread metadata: %w", err)
		}
	}
	th.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &th, nil
}

// touchThreadTx creates the thread row on first write or bumps updated_at.
func touchThreadTx(ctx context.Context, tx *sql.Tx, scope Scope, now string) error {
	if scope.ThreadID == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threads (thread_id, user_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id, user_id) DO UPDATE SET
			updated_at = excluded.updated_at
	`, scope.ThreadID, scope.UserID, now); err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}
