package replay

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/boristopalov/trainloop/pkg/core"
)

// SQLiteStore persists transitions in a SQLite database. Vector fields are
// stored as a JSON payload.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

type transitionPayload struct {
	Observation     core.Observation `json:"observation"`
	Action          core.Action      `json:"action"`
	NextObservation core.Observation `json:"next_observation"`
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, t Transition) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(transitionPayload{
		Observation:     t.Observation,
		Action:          t.Action,
		NextObservation: t.NextObservation,
	})
	if err != nil {
		return fmt.Errorf("encode transition: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO transitions (run_id, episode, step_index, reward, discount, last, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.RunID, t.Episode, t.Index, t.Reward, t.Discount, t.Last, payload)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, runID string, limit int) ([]Transition, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT episode, step_index, reward, discount, last, payload
		FROM transitions
		WHERE run_id = ?
		ORDER BY id
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		t := Transition{RunID: runID}
		var payload []byte
		if err := rows.Scan(&t.Episode, &t.Index, &t.Reward, &t.Discount, &t.Last, &payload); err != nil {
			return nil, err
		}
		var p transitionPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode transition: %w", err)
		}
		t.Observation, t.Action, t.NextObservation = p.Observation, p.Action, p.NextObservation
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, runID string) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transitions WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			episode INTEGER NOT NULL,
			step_index INTEGER NOT NULL,
			reward REAL NOT NULL,
			discount REAL NOT NULL,
			last INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS transitions_run_id ON transitions (run_id, id);
	`)
	return err
}
