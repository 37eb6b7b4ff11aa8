package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"jubo/internal/bulletin"
)

// ErrNoSnapshot is returned when no table has ever been persisted.
var ErrNoSnapshot = errors.New("no bulletin snapshot in store")

// Store persists the last successfully pulled bulletin table to SQLite so
// the dashboard keeps working across restarts while the sheet source is
// unreachable.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
            pos INTEGER PRIMARY KEY,
            date TIMESTAMP NOT NULL,
            category TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS snapshot_meta (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            fetched_at TIMESTAMP NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceSnapshot atomically replaces the stored table with a fresh pull.
// pos preserves original sheet order so analytics that depend on
// first-occurrence order survive a round trip.
func (s *Store) ReplaceSnapshot(ctx context.Context, table bulletin.Table, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries(pos, date, category, title, body) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range table {
		if _, err := stmt.ExecContext(ctx, i, e.Date.UTC(), e.Category, e.Title, e.Body); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta(id, fetched_at) VALUES(1, ?)
        ON CONFLICT(id) DO UPDATE SET fetched_at=excluded.fetched_at`, fetchedAt.UTC()); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSnapshot returns the persisted table in original order together with
// the time it was fetched. Returns ErrNoSnapshot when nothing was stored.
func (s *Store) LoadSnapshot(ctx context.Context) (bulletin.Table, time.Time, error) {
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT fetched_at FROM snapshot_meta WHERE id = 1`).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date, category, title, body FROM entries ORDER BY pos`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var table bulletin.Table
	for rows.Next() {
		var e bulletin.Entry
		if err := rows.Scan(&e.Date, &e.Category, &e.Title, &e.Body); err != nil {
			return nil, time.Time{}, err
		}
		table = append(table, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	return table, fetchedAt, nil
}
