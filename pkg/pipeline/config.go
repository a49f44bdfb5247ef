// Package pipeline provides the public API for turning page HTML into
// structured recipe records.
package pipeline

import (
	"time"

	"github.com/platewise/platewise/internal/cache"
	"github.com/platewise/platewise/pkg/cleaner"
	"github.com/platewise/platewise/pkg/extractor"
)

// Config holds all pipeline configuration.
type Config struct {
	// LLM settings
	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	// Extraction settings
	Temperature    float64
	MaxTokens      int
	MaxContentSize int

	// AdaptiveCleaning enables the cleaning-strategy cascade after a
	// confident "not a recipe yet" first pass.
	AdaptiveCleaning bool

	// ConfidenceThreshold is the minimum model confidence below which a
	// negative verdict is accepted without retrying with less cleaning.
	// The value is a tuning knob: negative-verdict confidence comes
	// straight from the model and carries no calibration guarantee.
	ConfidenceThreshold float64

	// ValidationMaxRetries bounds the validation feedback loop. Zero
	// skips validation entirely and trusts the model's first structure.
	ValidationMaxRetries int

	// SchemaVersion is stamped on every produced recipe and cache entry.
	SchemaVersion string

	// Cache settings
	CacheEnabled       bool
	CachePath          string
	CacheLookupTimeout time.Duration
	CacheSaveTimeout   time.Duration
	CacheCountTimeout  time.Duration

	// Injected collaborators (override the defaults built from the
	// settings above, mostly useful in tests)
	Cleaner   cleaner.Cleaner
	Extractor extractor.Extractor

	// store overrides the sqlite backend; set by in-package tests.
	store cache.Store
}

// DefaultSchemaVersion identifies the current recipe document layout.
const DefaultSchemaVersion = "1.0"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	cacheDefaults := cache.DefaultConfig()
	return Config{
		Provider:             "anthropic",
		Temperature:          0.1,
		MaxTokens:            8192,
		MaxContentSize:       100000,
		AdaptiveCleaning:     true,
		ConfidenceThreshold:  0.5,
		ValidationMaxRetries: 3,
		SchemaVersion:        DefaultSchemaVersion,
		CacheEnabled:         true,
		CachePath:            "platewise-cache.db",
		CacheLookupTimeout:   cacheDefaults.LookupTimeout,
		CacheSaveTimeout:     cacheDefaults.SaveTimeout,
		CacheCountTimeout:    cacheDefaults.CountTimeout,
	}
}

// Option configures the pipeline.
type Option func(*Config)

// WithProvider sets the LLM provider.
func WithProvider(provider string) Option {
	return func(c *Config) { c.Provider = provider }
}

// WithModel sets the LLM model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAdaptiveCleaning toggles the cleaning-strategy cascade.
func WithAdaptiveCleaning(enabled bool) Option {
	return func(c *Config) { c.AdaptiveCleaning = enabled }
}

// WithConfidenceThreshold sets the adaptive retry confidence cutoff.
func WithConfidenceThreshold(t float64) Option {
	return func(c *Config) { c.ConfidenceThreshold = t }
}

// WithValidationMaxRetries sets the validation feedback retry bound.
func WithValidationMaxRetries(n int) Option {
	return func(c *Config) { c.ValidationMaxRetries = n }
}

// WithSchemaVersion sets the stamped schema version.
func WithSchemaVersion(v string) Option {
	return func(c *Config) { c.SchemaVersion = v }
}

// WithCacheEnabled toggles the result cache.
func WithCacheEnabled(enabled bool) Option {
	return func(c *Config) { c.CacheEnabled = enabled }
}

// WithCachePath sets the cache database location.
func WithCachePath(path string) Option {
	return func(c *Config) { c.CachePath = path }
}

// WithCacheTimeouts sets the lookup, save and count deadlines.
func WithCacheTimeouts(lookup, save, count time.Duration) Option {
	return func(c *Config) {
		c.CacheLookupTimeout = lookup
		c.CacheSaveTimeout = save
		c.CacheCountTimeout = count
	}
}

// WithMaxContentSize limits the content bytes sent to the LLM.
func WithMaxContentSize(n int) Option {
	return func(c *Config) { c.MaxContentSize = n }
}

// WithCleaner injects a custom cleaner.
func WithCleaner(cl cleaner.Cleaner) Option {
	return func(c *Config) { c.Cleaner = cl }
}

// WithExtractor injects a custom extractor.
func WithExtractor(ex extractor.Extractor) Option {
	return func(c *Config) { c.Extractor = ex }
}
