// Package storage defines the replay hit log contract.
package storage

import (
	"context"
	"time"
)

// Hit records the outcome of matching one incoming request against the
// loaded cassettes.
type Hit struct {
	ID         string    `db:"id"`
	Cassette   string    `db:"cassette"`
	Method     string    `db:"method"`
	URI        string    `db:"uri"`
	StatusCode int       `db:"status_code"`
	Matched    bool      `db:"matched"`
	CreatedAt  time.Time `db:"created_at"`
}

// HitStore persists replay hits and misses.
type HitStore interface {
	RecordHit(ctx context.Context, hit Hit) error
	ListHits(ctx context.Context, limit int) ([]Hit, error)
	Close() error
}
