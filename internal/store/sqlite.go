package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS agent_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		summary TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_sessions_user ON agent_sessions(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_agent_sessions_updated ON agent_sessions(updated_at);

	CREATE TABLE IF NOT EXISTS agent_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		assistant_message TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES agent_sessions(session_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_agent_runs_session ON agent_runs(session_id, id);

	CREATE TABLE IF NOT EXISTS agent_memory (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		memory TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_memory_user ON agent_memory(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_agent_memory_created ON agent_memory(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// wrap annotates err with op and tags database-level failures with ErrUnavailable.
func wrap(op string, err error) error {
	if shared.IsSQLiteUnavailableError(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.SessionRecord) error {
	query := `
	INSERT INTO agent_sessions (session_id, user_id, summary, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`

	var summary interface{}
	if session.Summary != "" {
		summary = session.Summary
	}

	_, err := s.db.ExecContext(ctx, query,
		session.SessionID, session.UserID, summary,
		session.CreatedAt.UnixNano(), session.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return wrap("insert session", err)
	}
	return nil
}

// GetSession retrieves a session by its ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	query := `
		SELECT session_id, user_id, summary, created_at, updated_at
		FROM agent_sessions WHERE session_id = ?`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("scan session row", err)
	}
	return session, nil
}

// SessionsForUser returns every session owned by userID, newest first.
func (s *SQLiteStore) SessionsForUser(ctx context.Context, userID string) ([]*domain.SessionRecord, error) {
	query := `
		SELECT session_id, user_id, summary, created_at, updated_at
		FROM agent_sessions WHERE user_id = ?
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrap("query sessions", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.SessionRecord
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, wrap("scan session row", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate sessions", err)
	}

	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.SessionRecord, error) {
	var session domain.SessionRecord
	var summary sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(&session.SessionID, &session.UserID, &summary, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	session.Summary = summary.String
	session.CreatedAt = time.Unix(0, createdAt)
	session.UpdatedAt = time.Unix(0, updatedAt)
	return &session, nil
}

// UpdateSessionSummary replaces the rolling summary of a session.
func (s *SQLiteStore) UpdateSessionSummary(ctx context.Context, sessionID, summary string) error {
	query := `UPDATE agent_sessions SET summary = ?, updated_at = ? WHERE session_id = ?`
	result, err := s.db.ExecContext(ctx, query, summary, time.Now().UnixNano(), sessionID)
	if err != nil {
		return wrap("update session summary", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// AppendRun records a completed exchange and touches the owning session.
func (s *SQLiteStore) AppendRun(ctx context.Context, run *domain.RunRecord) error {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin run transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back run transaction", "error", rbErr)
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_runs (session_id, user_message, assistant_message, created_at)
		VALUES (?, ?, ?, ?)`,
		run.SessionID, run.UserMessage, run.AssistantMessage, createdAt.UnixNano(),
	)
	if err != nil {
		return wrap("insert run", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE agent_sessions SET updated_at = ? WHERE session_id = ?`,
		createdAt.UnixNano(), run.SessionID)
	if err != nil {
		return wrap("touch session", err)
	}

	if err := tx.Commit(); err != nil {
		return wrap("commit run", err)
	}
	return nil
}

// RecentRuns returns up to limit most recent runs of a session, oldest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, sessionID string, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT session_id, user_message, assistant_message, created_at FROM (
			SELECT id, session_id, user_message, assistant_message, created_at
			FROM agent_runs WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, wrap("query runs", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close run rows", "error", closeErr)
		}
	}()

	var runs []*domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		var createdAt int64
		if err := rows.Scan(&run.SessionID, &run.UserMessage, &run.AssistantMessage, &createdAt); err != nil {
			return nil, wrap("scan run row", err)
		}
		run.CreatedAt = time.Unix(0, createdAt)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate runs", err)
	}

	return runs, nil
}

// AddMemory inserts a memory record.
func (s *SQLiteStore) AddMemory(ctx context.Context, memory *domain.MemoryRecord) error {
	query := `
	INSERT INTO agent_memory (id, user_id, memory, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		memory.ID, memory.UserID, memory.Memory,
		memory.CreatedAt.UnixNano(), memory.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return wrap("insert memory", err)
	}
	return nil
}

// UserMemories returns all memories for a user, oldest first.
func (s *SQLiteStore) UserMemories(ctx context.Context, userID string) ([]*domain.MemoryRecord, error) {
	query := `
		SELECT id, user_id, memory, created_at, updated_at
		FROM agent_memory WHERE user_id = ?
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrap("query memories", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close memory rows", "error", closeErr)
		}
	}()

	var memories []*domain.MemoryRecord
	for rows.Next() {
		var memory domain.MemoryRecord
		var createdAt, updatedAt int64
		if err := rows.Scan(&memory.ID, &memory.UserID, &memory.Memory, &createdAt, &updatedAt); err != nil {
			return nil, wrap("scan memory row", err)
		}
		memory.CreatedAt = time.Unix(0, createdAt)
		memory.UpdatedAt = time.Unix(0, updatedAt)
		memories = append(memories, &memory)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate memories", err)
	}

	return memories, nil
}

// LatestMemoryOwner returns the user ID of the most recently created memory.
func (s *SQLiteStore) LatestMemoryOwner(ctx context.Context) (string, error) {
	query := `SELECT user_id FROM agent_memory ORDER BY created_at DESC LIMIT 1`

	var userID string
	err := s.db.QueryRowContext(ctx, query).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", wrap("query latest memory owner", err)
	}
	return userID, nil
}

// CleanupExpiredSessions removes sessions, and their runs, not updated within ttl.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).UnixNano()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM agent_runs WHERE session_id IN (
			SELECT session_id FROM agent_sessions WHERE updated_at < ?
		)`, threshold)
	if err != nil {
		return 0, wrap("cleanup expired runs", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM agent_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, wrap("cleanup expired sessions", err)
	}
	return result.RowsAffected()
}
