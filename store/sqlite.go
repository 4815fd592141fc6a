package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is a persistent Store backed by SQLite.
//
// All operations share a single connection, so each IncrementAndPeek
// transaction is serialised against every other caller of the same store.
// SQLite has no native key expiry: expired rows read as zero, restart at one
// on the next increment, and are physically removed by Prune.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// initialises the schema. Use ":memory:" for an in-memory SQLite database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ratelimit/store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ratelimit_counters (
			key        TEXT PRIMARY KEY,
			count      INTEGER NOT NULL DEFAULT 0,
			expires_at INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ratelimit/store: create table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// IncrementAndPeek atomically adds one to currentKey, refreshes its expiry and
// reads previousKey, all inside one transaction.
func (s *SQLiteStore) IncrementAndPeek(ctx context.Context, currentKey, previousKey string, ttl time.Duration) (int64, int64, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, Unavailable("increment", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ratelimit_counters (key, count, expires_at) VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN ratelimit_counters.expires_at <= ? THEN 1 ELSE ratelimit_counters.count + 1 END,
			expires_at = excluded.expires_at
		RETURNING count`,
		currentKey, now.Add(ttl).UnixNano(), now.UnixNano(),
	).Scan(&current)
	if err != nil {
		return 0, 0, Unavailable("increment", err)
	}

	var previous int64
	err = tx.QueryRowContext(ctx,
		`SELECT count FROM ratelimit_counters WHERE key = ? AND expires_at > ?`,
		previousKey, now.UnixNano(),
	).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, Unavailable("increment", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, Unavailable("increment", err)
	}
	return current, previous, nil
}

// Peek reads both counters in a single statement without modifying them.
func (s *SQLiteStore) Peek(ctx context.Context, currentKey, previousKey string) (int64, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, count FROM ratelimit_counters WHERE key IN (?, ?) AND expires_at > ?`,
		currentKey, previousKey, s.now().UnixNano(),
	)
	if err != nil {
		return 0, 0, Unavailable("peek", err)
	}
	defer rows.Close()

	var current, previous int64
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return 0, 0, Unavailable("peek", err)
		}
		switch key {
		case currentKey:
			current = count
		case previousKey:
			previous = count
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, Unavailable("peek", err)
	}
	return current, previous, nil
}

// Prune deletes expired counters and reports how many rows were removed.
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ratelimit_counters WHERE expires_at <= ?`, s.now().UnixNano(),
	)
	if err != nil {
		return 0, Unavailable("prune", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
