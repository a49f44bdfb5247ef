package pipeline

import (
	"context"
	"fmt"

	"github.com/platewise/platewise/internal/cache"
	"github.com/platewise/platewise/internal/logger"
	"github.com/platewise/platewise/pkg/cleaner"
	"github.com/platewise/platewise/pkg/extractor"
	"github.com/platewise/platewise/pkg/llm"
	"github.com/platewise/platewise/pkg/recipe"
	"github.com/platewise/platewise/pkg/urlkey"
)

// Pipeline is the main entry point for recipe extraction.
type Pipeline struct {
	cleaner   cleaner.Cleaner
	extractor extractor.Extractor
	validator *recipe.Validator
	post      *recipe.PostProcessor
	cache     *cache.ResultCache
	hasher    *urlkey.Hasher
	store     cache.Store
	config    Config
}

// New creates a new Pipeline.
func New(opts ...Option) (*Pipeline, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cl := cfg.Cleaner
	if cl == nil {
		cl = cleaner.New()
	}

	ext := cfg.Extractor
	if ext == nil {
		provider, err := newProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor: %w", err)
		}
		ext = extractor.NewLLM(provider, extractor.Config{
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			MaxContentSize: cfg.MaxContentSize,
		})
	}

	store := cfg.store
	if store == nil && cfg.CacheEnabled {
		var err error
		store, err = cache.OpenSQLite(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open result cache: %w", err)
		}
	}

	return &Pipeline{
		cleaner:   cl,
		extractor: ext,
		validator: recipe.NewValidator(),
		post:      recipe.NewPostProcessor(cfg.SchemaVersion),
		cache: cache.New(store, cache.Config{
			Enabled:       cfg.CacheEnabled,
			LookupTimeout: cfg.CacheLookupTimeout,
			SaveTimeout:   cfg.CacheSaveTimeout,
			CountTimeout:  cfg.CacheCountTimeout,
			Version:       cfg.SchemaVersion,
		}),
		hasher: urlkey.NewHasher(),
		store:  store,
		config: cfg,
	}, nil
}

// newProvider builds the LLM backend for the configured provider name.
func newProvider(cfg Config) (llm.Provider, error) {
	providerCfg := llm.ProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}

	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIProvider(providerCfg)
	case "anthropic", "":
		return llm.NewAnthropicProvider(providerCfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s (use anthropic or openai)", cfg.Provider)
	}
}

// Run extracts recipes from one page's HTML.
//
// The caller always receives either a well-formed response (is_recipe set,
// zero or more validated recipes) or an error from the underlying
// extraction call. Cache trouble never surfaces as an error, and a recipe
// that failed all validation attempts is never returned.
func (p *Pipeline) Run(ctx context.Context, html, sourceURL string) (*extractor.ExtractionResponse, error) {
	contentHash, err := p.hasher.Hash(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("cannot derive content hash: %w", err)
	}

	if entry, ok := p.cache.Lookup(ctx, contentHash); ok {
		if resp, ok := responseFromEntry(entry); ok {
			logger.Debug("cache hit", "url", sourceURL, "hash", contentHash, "valid", entry.Valid)
			return resp, nil
		}
		// Undecodable payload: fall through and re-extract.
		logger.Warn("cache entry payload unreadable, re-extracting", "hash", contentHash)
	}

	resp, err := p.runAdaptive(ctx, html, sourceURL)
	if err != nil {
		// No definitive outcome, nothing is cached.
		return nil, err
	}

	if resp.IsRecipe {
		p.cache.StoreValid(ctx, contentHash, sourceURL, resp.Recipes)
	} else {
		p.cache.StoreInvalid(ctx, contentHash, sourceURL)
	}

	return resp, nil
}

// CacheSize reports the number of cached outcomes, zero when unavailable.
func (p *Pipeline) CacheSize(ctx context.Context) int64 {
	return p.cache.Count(ctx)
}

// ClearMemo drops the URL hash memo.
func (p *Pipeline) ClearMemo() {
	p.hasher.Clear()
}

// Provider returns the extractor name.
func (p *Pipeline) Provider() string {
	return p.extractor.Name()
}

// Close releases the cache store.
func (p *Pipeline) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// responseFromEntry rebuilds a terminal response from a cached outcome.
func responseFromEntry(entry *cache.Entry) (*extractor.ExtractionResponse, bool) {
	if !entry.Valid {
		return extractor.NotARecipe(0), true
	}
	recipes, err := entry.Recipes()
	if err != nil || len(recipes) == 0 {
		return nil, false
	}
	return extractor.Found(recipes), true
}
