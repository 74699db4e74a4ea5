// Package configstore owns the runtime configuration table: a flat string
// keyed map of API keys, prompt material, and cache settings that drives the
// search pipeline without redeployment.
package configstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// ErrNotFound is returned when a configuration key does not exist.
var ErrNotFound = errors.New("configuration key not found")

// Valid configuration groups.
const (
	GroupAPI    = "api"
	GroupPrompt = "prompt"
	GroupUI     = "ui"
	GroupCache  = "cache"
)

// Entry is one row of the configuration table.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Group     string    `json:"group"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store provides access to the configurations table.
type Store struct {
	db *sql.DB
}

// New opens a Postgres connection and verifies it.
func New(connectionString string) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection (used by tests).
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the configurations table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS configurations (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		"group" TEXT NOT NULL DEFAULT 'api',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_configurations_group ON configurations ("group");`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate configurations table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetAll returns the full configuration as a key/value map.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM configurations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan configuration row: %w", err)
		}
		configs[key] = value
	}
	return configs, rows.Err()
}

// List returns all entries ordered by group then key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `SELECT key, value, "group", updated_at FROM configurations ORDER BY "group", key`)
}

// GetByGroup returns the entries belonging to one configuration group.
func (s *Store) GetByGroup(ctx context.Context, group string) ([]Entry, error) {
	return s.query(ctx, `SELECT key, value, "group", updated_at FROM configurations WHERE "group" = $1 ORDER BY key`, group)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Group, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan configuration row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetByKey returns a single entry, or ErrNotFound.
func (s *Store) GetByKey(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, "group", updated_at FROM configurations WHERE key = $1`, key).
		Scan(&e.Key, &e.Value, &e.Group, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration %q: %w", key, err)
	}
	return &e, nil
}

// Update upserts a single key: updates the value if the key exists, creates it
// in the api group otherwise. The upsert is atomic per key.
func (s *Store) Update(ctx context.Context, key, value string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO configurations (key, value, "group", updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING key, value, "group", updated_at`,
		key, value, GroupAPI).
		Scan(&e.Key, &e.Value, &e.Group, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert configuration %q: %w", key, err)
	}
	return &e, nil
}

// BatchUpdate upserts several keys inside one transaction.
func (s *Store) BatchUpdate(ctx context.Context, settings map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range settings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO configurations (key, value, "group", updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			key, value, GroupAPI); err != nil {
			return fmt.Errorf("failed to upsert configuration %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit configuration batch: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM configurations WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete configuration %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts every default entry that is not already present and returns the
// number of rows created. Existing values are never overwritten.
func (s *Store) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, e := range DefaultConfigurations {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO configurations (key, value, "group", updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (key) DO NOTHING`,
			e.Key, e.Value, e.Group)
		if err != nil {
			return created, fmt.Errorf("failed to seed configuration %q: %w", e.Key, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			created++
		}
	}
	return created, nil
}
