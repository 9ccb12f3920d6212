// Package store persists finished test results to a local sqlite database so
// an athlete's attempt history survives restarts and can be re-read for
// progress comparison or batch reprocessing.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/finessevanes/ltad-coach-sub005/internal/balance"
	"github.com/finessevanes/ltad-coach-sub005/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a result id does not exist.
var ErrNotFound = errors.New("store: result not found")

// Store wraps the sqlite connection.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Option configures a Store at open time.
type Option func(*Store)

// WithClock substitutes the wall clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens (creating if necessary) the database at path and brings the
// schema up to date from the embedded migrations.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: not closing m, that would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _, _ := m.Version()
	log.Printf("store: schema at migration version %d", version)
	return nil
}

// SavedResult is one persisted attempt.
type SavedResult struct {
	ID        string
	AthleteID string
	CreatedAt time.Time
	Result    *balance.TestResult
}

// SaveResult persists a finished result for an athlete and returns the
// generated row id. The full result is stored as JSON next to the scalar
// columns used for listing and querying.
func (s *Store) SaveResult(ctx context.Context, athleteID string, res *balance.TestResult) (string, error) {
	if res == nil {
		return "", fmt.Errorf("store: nil result")
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (
			id, athlete_id, created_at, leg, success, end_reason,
			hold_seconds, duration_score, stability_score, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, athleteID, s.clock.Now().UTC(), string(res.Leg), res.Success, res.EndReason,
		res.HoldDuration.Seconds(), res.Score.Duration, res.Score.Stability, string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert result: %w", err)
	}
	return id, nil
}

// Result loads one persisted attempt by id.
func (s *Store) Result(ctx context.Context, id string) (*SavedResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, athlete_id, created_at, result_json FROM results WHERE id = ?`, id)
	saved, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return saved, err
}

// Results lists an athlete's attempts, newest first.
func (s *Store) Results(ctx context.Context, athleteID string) ([]SavedResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, athlete_id, created_at, result_json
		 FROM results WHERE athlete_id = ? ORDER BY created_at DESC, id`, athleteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []SavedResult
	for rows.Next() {
		saved, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *saved)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*SavedResult, error) {
	var saved SavedResult
	var payload string
	if err := row.Scan(&saved.ID, &saved.AthleteID, &saved.CreatedAt, &payload); err != nil {
		return nil, err
	}
	saved.Result = &balance.TestResult{}
	if err := json.Unmarshal([]byte(payload), saved.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", saved.ID, err)
	}
	return &saved, nil
}
