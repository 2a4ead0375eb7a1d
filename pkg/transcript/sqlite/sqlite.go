// Package sqlite provides a transcript recorder backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/moriagate/balrog/pkg/transcript"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id             TEXT PRIMARY KEY,
	session        TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	prompt         TEXT NOT NULL,
	reply          TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	duration_ns    INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session);
`

// Driver records turns in a SQLite database. Pass ":memory:" for an
// in-memory database.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (creating if necessary) the database at path and ensures
// the schema exists.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Record stores an entry.
func (d *Driver) Record(ctx context.Context, entry *transcript.Entry) error {
	if entry == nil {
		return fmt.Errorf("cannot record nil entry")
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO turns (id, session, outcome, prompt, reply, classification, model, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Session, entry.Outcome, entry.Prompt, entry.Reply,
		entry.Classification, entry.Model, int64(entry.Duration), entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (d *Driver) Recent(ctx context.Context, limit int) ([]*transcript.Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, session, outcome, prompt, reply, classification, model, duration_ns, created_at
		 FROM turns ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// BySession returns a session's entries in insertion order.
func (d *Driver) BySession(ctx context.Context, session string) ([]*transcript.Entry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, session, outcome, prompt, reply, classification, model, duration_ns, created_at
		 FROM turns WHERE session = ? ORDER BY rowid ASC`, session)
	if err != nil {
		return nil, fmt.Errorf("query session turns: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Stats returns counts over all recorded entries.
func (d *Driver) Stats(ctx context.Context) (transcript.Stats, error) {
	stats := transcript.Stats{ByOutcome: make(map[string]int)}

	rows, err := d.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM turns GROUP BY outcome`)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return stats, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByOutcome[outcome] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate stats rows: %w", err)
	}

	return stats, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func scanEntries(rows *sql.Rows) ([]*transcript.Entry, error) {
	entries := make([]*transcript.Entry, 0)
	for rows.Next() {
		var entry transcript.Entry
		var durationNS int64
		var createdAt time.Time

		if err := rows.Scan(&entry.ID, &entry.Session, &entry.Outcome, &entry.Prompt,
			&entry.Reply, &entry.Classification, &entry.Model, &durationNS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}

		entry.Duration = time.Duration(durationNS)
		entry.CreatedAt = createdAt.UTC()
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return entries, nil
}
