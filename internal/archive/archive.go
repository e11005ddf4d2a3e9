// Package archive provides a best-effort SQLite transcript archive. Every
// committed turn is copied here keyed by session ID, so operators can review
// past conversations after the process exits. The archive is write-only from
// the answer path: live conversation memory never reads it back, keeping
// sessions isolated from each other and from previous runs.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/skcet-ai/skcetbot/internal/memory"
)

// TranscriptArchive persists and retrieves conversation transcripts keyed by
// session ID. Implementations must be safe for concurrent use.
type TranscriptArchive interface {
	// Append persists a single turn for the given session.
	Append(ctx context.Context, sessionID string, role memory.Role, content string) error
	// Transcript returns the most recent n turns for the session, ordered
	// oldest-first. If fewer than n turns exist, all are returned.
	Transcript(ctx context.Context, sessionID string, n int) ([]memory.Turn, error)
	// Sessions returns the IDs of all archived sessions, most recent first.
	Sessions(ctx context.Context) ([]string, error)
	// Close releases any resources held by the archive.
	Close() error
}

// SQLiteArchive is a TranscriptArchive backed by a local SQLite database.
type SQLiteArchive struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the transcript database.
// It resolves to ~/.skcetbot/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("archive: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".skcetbot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("archive: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteArchive at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteArchive, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// migrate creates the schema if it does not already exist.
func (a *SQLiteArchive) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS transcripts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session      TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_transcripts_session_created
    ON transcripts (session, created_at);
`
	if _, err := a.db.Exec(ddl); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// Append persists a single turn for the given session.
func (a *SQLiteArchive) Append(ctx context.Context, sessionID string, role memory.Role, content string) error {
	const q = `INSERT INTO transcripts (session, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := a.db.ExecContext(ctx, q, sessionID, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("archive: append: %w", err)
	}
	return nil
}

// Transcript returns the most recent n turns for the session, ordered
// oldest-first. Uses a subquery to select the tail then re-order for display.
func (a *SQLiteArchive) Transcript(ctx context.Context, sessionID string, n int) ([]memory.Turn, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   transcripts
    WHERE  session = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := a.db.QueryContext(ctx, q, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("archive: transcript: %w", err)
	}
	defer rows.Close()

	var turns []memory.Turn
	for rows.Next() {
		var turn memory.Turn
		var ts int64
		var role string
		if err := rows.Scan(&role, &turn.Content, &ts); err != nil {
			return nil, fmt.Errorf("archive: transcript scan: %w", err)
		}
		turn.Role = memory.Role(role)
		turn.CreatedAt = time.Unix(ts, 0)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: transcript rows: %w", err)
	}
	return turns, nil
}

// Sessions returns the IDs of all archived sessions, most recently active
// first.
func (a *SQLiteArchive) Sessions(ctx context.Context) ([]string, error) {
	const q = `
SELECT session
FROM   transcripts
GROUP  BY session
ORDER  BY MAX(created_at) DESC, MAX(id) DESC`

	rows, err := a.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("archive: sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("archive: sessions scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: sessions rows: %w", err)
	}
	return ids, nil
}

// Close releases the database connection pool.
func (a *SQLiteArchive) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("archive: close: %w", err)
	}
	return nil
}
