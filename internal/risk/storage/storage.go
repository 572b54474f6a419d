// Package storage persists the per-day risk ledger in a small standalone
// SQLite database, one row per local date.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"polytrader/internal/types"

	_ "modernc.org/sqlite"
)

// Store wraps a sqlite database holding daily risk states.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the sqlite database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("risk storage: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Load returns the state for the given date, or nil when none is stored.
func (s *Store) Load(ctx context.Context, date string) (*types.DailyRiskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("risk storage: not initialized")
	}
	var (
		blob      []byte
		emergency int
	)
	row := s.db.QueryRowContext(ctx, `SELECT state_json, emergency_stop FROM daily_risk WHERE date = ?`, date)
	if err := row.Scan(&blob, &emergency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var state types.DailyRiskState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("risk storage: decoding state for %s failed: %w", date, err)
	}
	state.EmergencyStopTriggered = emergency != 0
	return &state, nil
}

// Save upserts the state for its date.
func (s *Store) Save(ctx context.Context, state types.DailyRiskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("risk storage: not initialized")
	}
	if strings.TrimSpace(state.Date) == "" {
		return fmt.Errorf("risk storage: state date cannot be empty")
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return err
	}
	emergency := 0
	if state.EmergencyStopTriggered {
		emergency = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_risk(date, state_json, emergency_stop, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			state_json=excluded.state_json,
			emergency_stop=excluded.emergency_stop,
			updated_at=excluded.updated_at;
	`, state.Date, blob, emergency, time.Now().UnixMilli())
	return err
}

// Close closes the underlying db.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmt := `
	CREATE TABLE IF NOT EXISTS daily_risk (
		date TEXT PRIMARY KEY,
		state_json TEXT NOT NULL,
		emergency_stop INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER
	);`
	_, err := db.Exec(stmt)
	return err
}
