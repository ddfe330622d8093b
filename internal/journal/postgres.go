package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	cycle_id   TEXT NOT NULL DEFAULT '',
	level      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	old_path   TEXT NOT NULL DEFAULT '',
	new_path   TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS journal_entries_created_at_idx ON journal_entries (created_at);
`

// Postgres stores entries in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to databaseURL and creates the journal table.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal table: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Record implements Journal.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO journal_entries (created_at, cycle_id, level, kind, old_path, new_path, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Time, e.CycleID, e.Level, e.Kind, e.OldPath, e.NewPath, e.Message)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT created_at, cycle_id, level, kind, old_path, new_path, message
		 FROM journal_entries ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Time, &e.CycleID, &e.Level, &e.Kind, &e.OldPath, &e.NewPath, &e.Message); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}
