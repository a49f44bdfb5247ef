// Package cache persists terminal extraction outcomes keyed by content
// hash, so previously-seen pages never re-run the pipeline.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no entry exists for a hash.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached extraction outcome. Valid entries carry the
// serialized recipe list as payload; invalid entries record an explicit
// "not a recipe" verdict with no payload.
type Entry struct {
	ContentHash string
	SourceURL   string
	Valid       bool
	Payload     []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     string
}

// Store is the persistence backend for cache entries. Upsert fully
// replaces any prior entry for the same hash; no history is retained.
type Store interface {
	Get(ctx context.Context, contentHash string) (*Entry, error)
	Upsert(ctx context.Context, entry *Entry) error
	Count(ctx context.Context) (int64, error)
	Close() error
}
