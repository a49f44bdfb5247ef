package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/platewise/platewise/internal/logger"
	"github.com/platewise/platewise/pkg/recipe"
)

// Config controls the cache orchestration layer.
type Config struct {
	// Enabled toggles the cache. When false every lookup misses and
	// every store is a no-op.
	Enabled bool

	// LookupTimeout bounds reads; a slow store must not stall a request.
	LookupTimeout time.Duration

	// SaveTimeout bounds writes.
	SaveTimeout time.Duration

	// CountTimeout bounds the diagnostic count query.
	CountTimeout time.Duration

	// Version is stamped on every entry written.
	Version string
}

// DefaultConfig returns the default timeout policy.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		LookupTimeout: 150 * time.Millisecond,
		SaveTimeout:   5 * time.Second,
		CountTimeout:  time.Second,
	}
}

// ResultCache is a best-effort, timeout-bounded front over a Store.
// Store unavailability never fails the caller: lookups degrade to misses,
// writes are logged and swallowed, counts fall back to zero.
type ResultCache struct {
	store  Store
	config Config
}

// New creates a ResultCache. A nil store behaves like a disabled cache.
func New(store Store, cfg Config) *ResultCache {
	if store == nil {
		cfg.Enabled = false
	}
	return &ResultCache{store: store, config: cfg}
}

// Lookup returns the cached entry for a hash, or ok=false on miss,
// timeout, store error or disabled cache.
func (c *ResultCache) Lookup(ctx context.Context, contentHash string) (*Entry, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	entry, err := withTimeout(ctx, c.config.LookupTimeout, func(ctx context.Context) (*Entry, error) {
		return c.store.Get(ctx, contentHash)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Debug("cache lookup degraded to miss", "hash", contentHash, "error", err)
		}
		return nil, false
	}
	return entry, true
}

// StoreValid records a successful extraction. Serialization or store
// failures are logged and swallowed.
func (c *ResultCache) StoreValid(ctx context.Context, contentHash, sourceURL string, recipes []*recipe.Recipe) {
	if !c.config.Enabled {
		return
	}

	payload, err := json.Marshal(recipes)
	if err != nil {
		logger.Warn("cache store skipped, payload not serializable", "hash", contentHash, "error", err)
		return
	}
	c.upsert(ctx, &Entry{
		ContentHash: contentHash,
		SourceURL:   sourceURL,
		Valid:       true,
		Payload:     payload,
		Version:     c.config.Version,
	})
}

// StoreInvalid records a terminal "not a recipe" verdict for a hash.
func (c *ResultCache) StoreInvalid(ctx context.Context, contentHash, sourceURL string) {
	if !c.config.Enabled {
		return
	}
	c.upsert(ctx, &Entry{
		ContentHash: contentHash,
		SourceURL:   sourceURL,
		Valid:       false,
		Version:     c.config.Version,
	})
}

func (c *ResultCache) upsert(ctx context.Context, entry *Entry) {
	_, err := withTimeout(ctx, c.config.SaveTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.Upsert(ctx, entry)
	})
	if err != nil {
		logger.Warn("cache store failed", "hash", entry.ContentHash, "error", err)
		return
	}
	logger.Debug("cache entry stored", "hash", entry.ContentHash, "valid", entry.Valid)
}

// Count returns the number of cached entries, falling back to zero on any
// failure.
func (c *ResultCache) Count(ctx context.Context) int64 {
	if !c.config.Enabled {
		return 0
	}

	n, err := withTimeout(ctx, c.config.CountTimeout, func(ctx context.Context) (int64, error) {
		return c.store.Count(ctx)
	})
	if err != nil {
		logger.Debug("cache count failed, reporting zero", "error", err)
		return 0
	}
	return n
}

// Recipes deserializes the payload of a valid entry.
func (e *Entry) Recipes() ([]*recipe.Recipe, error) {
	if !e.Valid {
		return nil, nil
	}
	var recipes []*recipe.Recipe
	if err := json.Unmarshal(e.Payload, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// withTimeout runs fn under a deadline-bounded child context, returning
// fn's error (or the deadline error) for the caller to fall back on.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}
