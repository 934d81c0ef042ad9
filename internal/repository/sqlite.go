// Package repository persists finished agent runs and conversation
// messages to SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/datapilot/analyst/internal/domain"
)

// ArchivedMessage is one persisted conversation turn.
type ArchivedMessage struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteArchive stores agent run snapshots and messages in SQLite.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (and migrates) the archive database.
func NewSQLiteArchive(dsn string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	archive := &SQLiteArchive{db: db}
	if err := archive.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return archive, nil
}

// migrate runs database migrations.
func (s *SQLiteArchive) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agent_runs (
			agent_id TEXT PRIMARY KEY,
			agent_type TEXT NOT NULL,
			session_id TEXT NOT NULL,
			request_id TEXT,
			state TEXT NOT NULL,
			status TEXT NOT NULL,
			steps TEXT,
			result TEXT,
			error TEXT,
			total_duration_ms REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_runs_session ON agent_runs(session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_runs_updated ON agent_runs(updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			agent_id TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteArchive) Close() error {
	return s.db.Close()
}

// SaveRun upserts a finished run snapshot.
func (s *SQLiteArchive) SaveRun(ctx context.Context, resp *domain.AgentResponse) error {
	steps, err := json.Marshal(resp.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	var result sql.NullString
	if resp.Result != nil {
		b, err := json.Marshal(resp.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		result = sql.NullString{String: string(b), Valid: true}
	}
	var errData sql.NullString
	if resp.Error != nil {
		b, err := json.Marshal(resp.Error)
		if err != nil {
			return fmt.Errorf("failed to marshal error: %w", err)
		}
		errData = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO agent_runs (agent_id, agent_type, session_id, request_id, state, status, steps, result, error, total_duration_ms, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.AgentID, resp.AgentType, resp.SessionID, resp.RequestID, resp.State, resp.Status,
		string(steps), result, errData, resp.TotalDurationMs, resp.CreatedAt, resp.UpdatedAt)
	return err
}

// GetRun retrieves an archived run by agent ID. Returns nil when the
// run is unknown.
func (s *SQLiteArchive) GetRun(ctx context.Context, agentID string) (*domain.AgentResponse, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT agent_id, agent_type, session_id, request_id, state, status, steps, result, error, total_duration_ms, created_at, updated_at
		 FROM agent_runs WHERE agent_id = ?`, agentID)

	resp, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return resp, err
}

// ListRuns retrieves archived runs, newest first. A non-empty sessionID
// filters to that session; limit caps the result when positive.
func (s *SQLiteArchive) ListRuns(ctx context.Context, sessionID string, limit int) ([]*domain.AgentResponse, error) {
	query := `SELECT agent_id, agent_type, session_id, request_id, state, status, steps, result, error, total_duration_ms, created_at, updated_at FROM agent_runs`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AgentResponse
	for rows.Next() {
		resp, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// DeleteRunsBefore removes archived runs last updated before the cutoff
// and returns how many were removed.
func (s *SQLiteArchive) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent_runs WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveMessage persists one conversation turn.
func (s *SQLiteArchive) SaveMessage(ctx context.Context, msg *ArchivedMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, agent_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.MessageID, msg.SessionID, nullString(msg.AgentID), msg.Role, msg.Content, msg.CreatedAt)
	return err
}

// GetMessages retrieves messages for a session, oldest first.
func (s *SQLiteArchive) GetMessages(ctx context.Context, sessionID string, limit int) ([]ArchivedMessage, error) {
	query := `SELECT message_id, session_id, agent_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ArchivedMessage
	for rows.Next() {
		var msg ArchivedMessage
		var agentID sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &agentID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if agentID.Valid {
			msg.AgentID = agentID.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.AgentResponse, error) {
	var resp domain.AgentResponse
	var steps, result, errData sql.NullString
	err := row.Scan(&resp.AgentID, &resp.AgentType, &resp.SessionID, &resp.RequestID, &resp.State, &resp.Status,
		&steps, &result, &errData, &resp.TotalDurationMs, &resp.CreatedAt, &resp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if steps.Valid && steps.String != "" {
		if err := json.Unmarshal([]byte(steps.String), &resp.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}
	if result.Valid && result.String != "" {
		var v any
		if err := json.Unmarshal([]byte(result.String), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		resp.Result = v
	}
	if errData.Valid && errData.String != "" {
		var agentErr domain.AgentError
		if err := json.Unmarshal([]byte(errData.String), &agentErr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error: %w", err)
		}
		resp.Error = &agentErr
	}
	return &resp, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
