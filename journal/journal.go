// Package journal persists finished turns in SQLite so a conversation can be
// restored after a restart.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-persona/core"
)

// SQLiteJournal is an append-only turn log keyed by session ID.
type SQLiteJournal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path, ensuring that the parent
// directory exists.
func Open(path string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal at %s: %w", path, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			input TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id, id);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	log.Printf("[JOURNAL] Opened %s", path)
	return &SQLiteJournal{db: db}, nil
}

// Append records a finished turn.
func (j *SQLiteJournal) Append(ctx context.Context, sessionID string, turn core.Turn) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, input, response) VALUES (?, ?, ?)`,
		sessionID, turn.Input, turn.Response)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Turns returns the session's turns in the order they were appended.
func (j *SQLiteJournal) Turns(ctx context.Context, sessionID string) ([]core.Turn, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT input, response FROM turns WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var t core.Turn
		if err := rows.Scan(&t.Input, &t.Response); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Delete drops every turn of the session.
func (j *SQLiteJournal) Delete(ctx context.Context, sessionID string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

// Sessions lists session IDs that have at least one turn.
func (j *SQLiteJournal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id FROM turns GROUP BY session_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
