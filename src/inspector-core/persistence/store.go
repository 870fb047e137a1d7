// Package persistence durably snapshots the register store's allow-listed
// cells to SQLite, restores them at startup, and keeps a timestamped
// write-log of every observed change (spec §4.3; SPEC_FULL.md's
// command-write audit supplement).
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite-backed snapshot and write-log tables.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS register_snapshot (
	bank INTEGER NOT NULL,
	addr INTEGER NOT NULL,
	value INTEGER NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (bank, addr)
);
CREATE TABLE IF NOT EXISTS register_writes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bank INTEGER NOT NULL,
	addr INTEGER NOT NULL,
	value INTEGER NOT NULL,
	observed_at TIMESTAMP NOT NULL
);
`

// Open creates (or attaches to) the SQLite database at dsn and ensures the
// schema exists. dsn is a modernc.org/sqlite data source, e.g. a file path
// or "file::memory:?cache=shared" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadSnapshot returns every persisted (bank, addr) -> value pair, for
// restoring the register store at startup.
func (s *Store) LoadSnapshot(ctx context.Context) (map[registers.Bank]map[int]uint16, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bank, addr, value FROM register_snapshot`)
	if err != nil {
		return nil, fmt.Errorf("persistence: load snapshot: %w", err)
	}
	defer rows.Close()

	out := map[registers.Bank]map[int]uint16{
		registers.Holding: {},
		registers.Input:   {},
	}
	for rows.Next() {
		var bank, addr int
		var value uint16
		if err := rows.Scan(&bank, &addr, &value); err != nil {
			return nil, fmt.Errorf("persistence: scan snapshot row: %w", err)
		}
		out[registers.Bank(bank)][addr] = value
	}
	return out, rows.Err()
}

// Upsert writes or overwrites one cell's persisted value and appends a
// write-log entry recording the same change, in a single transaction.
func (s *Store) Upsert(ctx context.Context, bank registers.Bank, addr int, value uint16, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: begin upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO register_snapshot (bank, addr, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (bank, addr) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, int(bank), addr, value, at)
	if err != nil {
		return fmt.Errorf("persistence: upsert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO register_writes (bank, addr, value, observed_at) VALUES (?, ?, ?, ?)
	`, int(bank), addr, value, at)
	if err != nil {
		return fmt.Errorf("persistence: append write log: %w", err)
	}

	return tx.Commit()
}
