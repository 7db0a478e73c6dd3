// Package sqlite persists the replay hit log in a SQLite database.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/cassette/internal/storage"
)

// Store is a SQLite implementation of storage.HitStore.
type Store struct {
	db *sqlx.DB
}

var _ storage.HitStore = (*Store)(nil)

// New opens (or creates) the hit log database at dbPath. Use ":memory:"
// for an ephemeral store.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS replay_hits (
		id TEXT PRIMARY KEY,
		cassette TEXT NOT NULL,
		method TEXT NOT NULL,
		uri TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		matched INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`)
	return err
}

// RecordHit inserts one hit (or miss) into the log.
func (s *Store) RecordHit(ctx context.Context, hit storage.Hit) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO replay_hits (id, cassette, method, uri, status_code, matched, created_at)
		VALUES (:id, :cassette, :method, :uri, :status_code, :matched, :created_at)`, hit)
	if err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}
	return nil
}

// ListHits returns the most recent hits, newest first.
func (s *Store) ListHits(ctx context.Context, limit int) ([]storage.Hit, error) {
	if limit <= 0 {
		limit = 100
	}
	hits := []storage.Hit{}
	err := s.db.SelectContext(ctx, &hits, `
		SELECT id, cassette, method, uri, status_code, matched, created_at
		FROM replay_hits
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list hits: %w", err)
	}
	return hits, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
