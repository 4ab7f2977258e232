package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements the ledger on a local SQLite database. This is the
// durable single-instance backend: one append-only predictions table whose
// auto-incrementing id is the insertion sequence.
//
// Table layout (the durable contract — five fields, insertion-ordered):
//
//	CREATE TABLE predictions (
//	    id          INTEGER PRIMARY KEY AUTOINCREMENT,
//	    timestamp   TEXT NOT NULL,
//	    payload     TEXT NOT NULL,
//	    probability REAL NOT NULL,
//	    prediction  TEXT NOT NULL
//	)
type SQLiteStore struct {
	db *sql.DB

	// SQLite serializes writers internally, but a single connection plus
	// this mutex keeps append ordering deterministic under concurrency.
	mu sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the ledger database at path and
// ensures the predictions table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS predictions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   TEXT NOT NULL,
			payload     TEXT NOT NULL,
			probability REAL NOT NULL,
			prediction  TEXT NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create predictions table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append inserts the event and returns the assigned row id.
func (s *SQLiteStore) Append(ctx context.Context, event Event) (int64, error) {
	if len(event.Payload) == 0 {
		return 0, fmt.Errorf("event payload cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO predictions (timestamp, payload, probability, prediction) VALUES (?, ?, ?, ?)",
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		string(event.Payload),
		event.Probability,
		event.Verdict,
	)
	if err != nil {
		return 0, fmt.Errorf("insert prediction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}
	return id, nil
}

// List returns up to limit events ordered by id descending.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Event, error) {
	limit = normalizeLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, timestamp, payload, probability, prediction FROM predictions ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			ts      string
			payload string
		)
		if err := rows.Scan(&e.ID, &ts, &payload, &e.Probability, &e.Verdict); err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp %q: %w", ts, err)
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction rows: %w", err)
	}

	return events, nil
}

// Close closes the underlying database. Safe to call multiple times.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
