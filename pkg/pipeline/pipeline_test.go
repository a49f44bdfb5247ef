package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/platewise/platewise/internal/cache"
	"github.com/platewise/platewise/pkg/cleaner"
	"github.com/platewise/platewise/pkg/extractor"
	"github.com/platewise/platewise/pkg/recipe"
)

// --- Fakes ---

// fakeCleaner records which strategies ran and returns canned output per
// strategy.
type fakeCleaner struct {
	bestStrategy cleaner.Strategy
	outputs      map[cleaner.Strategy]string
	calls        []cleaner.Strategy
	err          error
}

func newFakeCleaner(best cleaner.Strategy) *fakeCleaner {
	return &fakeCleaner{
		bestStrategy: best,
		outputs: map[cleaner.Strategy]string{
			cleaner.StrategyStructuredData: "structured output",
			cleaner.StrategySectionBased:   "section output",
			cleaner.StrategyContentFilter:  "filtered output",
			cleaner.StrategyFallback:       "raw output",
		},
	}
}

func (f *fakeCleaner) CleanBest(html, url string) (string, cleaner.Strategy, cleaner.Metrics, error) {
	if f.err != nil {
		return "", f.bestStrategy, cleaner.Metrics{}, f.err
	}
	f.calls = append(f.calls, f.bestStrategy)
	out := f.outputs[f.bestStrategy]
	return out, f.bestStrategy, cleaner.Metrics{Strategy: f.bestStrategy, InputBytes: len(html), OutputBytes: len(out)}, nil
}

func (f *fakeCleaner) CleanWith(html, url string, s cleaner.Strategy) (string, cleaner.Metrics, error) {
	if f.err != nil {
		return "", cleaner.Metrics{}, f.err
	}
	f.calls = append(f.calls, s)
	out := f.outputs[s]
	return out, cleaner.Metrics{Strategy: s, InputBytes: len(html), OutputBytes: len(out)}, nil
}

// scriptedExtractor returns queued responses in order, one per call.
type scriptedExtractor struct {
	responses     []*extractor.ExtractionResponse
	errs          []error
	calls         int
	feedbackCalls int
	lastFeedback  string
}

func (s *scriptedExtractor) next() (*extractor.ExtractionResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return extractor.NotARecipe(0), nil
	}
	return s.responses[i], nil
}

func (s *scriptedExtractor) Extract(_ context.Context, content, sourceURL string) (*extractor.ExtractionResponse, error) {
	return s.next()
}

func (s *scriptedExtractor) ExtractWithFeedback(_ context.Context, content string, prior *recipe.Recipe, errorMessage string) (*extractor.ExtractionResponse, error) {
	s.feedbackCalls++
	s.lastFeedback = errorMessage
	return s.next()
}

func (s *scriptedExtractor) Name() string { return "scripted" }

// memStore is an in-memory cache.Store.
type memStore struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*cache.Entry)}
}

func (m *memStore) Get(_ context.Context, hash string) (*cache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[hash]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return e, nil
}

func (m *memStore) Upsert(_ context.Context, entry *cache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[entry.ContentHash] = entry
	return nil
}

func (m *memStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *memStore) Close() error { return nil }

// --- Helpers ---

func found(title string) *extractor.ExtractionResponse {
	return extractor.Found([]*recipe.Recipe{{
		Metadata:     &recipe.Metadata{Title: title},
		Ingredients:  []recipe.Ingredient{{Name: "flour", Quantity: 200, Unit: "g"}},
		Instructions: []recipe.Instruction{{Step: 1, Text: "Mix."}},
	}})
}

// brokenFound is a positive response whose recipe fails validation.
func brokenFound() *extractor.ExtractionResponse {
	return extractor.Found([]*recipe.Recipe{{
		Metadata:    &recipe.Metadata{Title: "Broken"},
		Ingredients: []recipe.Ingredient{{Name: "flour"}},
	}})
}

func newTestPipeline(t *testing.T, fc *fakeCleaner, fe *scriptedExtractor, store cache.Store, opts ...Option) *Pipeline {
	t.Helper()
	base := []Option{
		WithCleaner(fc),
		WithExtractor(fe),
	}
	if store != nil {
		base = append(base, func(c *Config) { c.store = store })
	} else {
		base = append(base, WithCacheEnabled(false))
	}
	p, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

const testURL = "https://example.com/recipe"

// --- Adaptive cascade ---

func TestRun_FirstPassSuccess(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{found("Carbonara")}}
	p := newTestPipeline(t, fc, fe, nil)

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !resp.IsRecipe || resp.Confidence != 1.0 {
		t.Errorf("resp = %+v, want positive with confidence 1.0", resp)
	}
	if fe.calls != 1 {
		t.Errorf("extractor called %d times, want 1", fe.calls)
	}
	if len(fc.calls) != 1 {
		t.Errorf("cleaner ran %v, want single best pass", fc.calls)
	}
}

func TestRun_ConfidentNegativeEscalatesCascade(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{
		extractor.NotARecipe(0.9),
		found("Hidden Recipe"),
	}}
	p := newTestPipeline(t, fc, fe, nil)

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !resp.IsRecipe {
		t.Fatal("expected the second pass to find the recipe")
	}
	wantCalls := []cleaner.Strategy{cleaner.StrategyStructuredData, cleaner.StrategySectionBased}
	if len(fc.calls) != len(wantCalls) {
		t.Fatalf("cleaner calls = %v, want %v", fc.calls, wantCalls)
	}
	for i := range wantCalls {
		if fc.calls[i] != wantCalls[i] {
			t.Errorf("cleaner call %d = %s, want %s", i, fc.calls[i], wantCalls[i])
		}
	}
}

func TestRun_LowConfidenceNegativeStopsImmediately(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{extractor.NotARecipe(0.1)}}
	p := newTestPipeline(t, fc, fe, nil)

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.IsRecipe {
		t.Error("expected negative verdict")
	}
	if resp.Confidence != 0.1 {
		t.Errorf("Confidence = %v, want 0.1", resp.Confidence)
	}
	if fe.calls != 1 {
		t.Errorf("extractor called %d times, want 1 (below threshold must not retry)", fe.calls)
	}
}

func TestRun_CascadeExhaustionReturnsLastNegative(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{
		extractor.NotARecipe(0.9),
		extractor.NotARecipe(0.8),
		extractor.NotARecipe(0.7),
		extractor.NotARecipe(0.6),
	}}
	p := newTestPipeline(t, fc, fe, nil)

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.IsRecipe {
		t.Error("expected terminal negative")
	}
	if resp.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want the last pass's 0.6", resp.Confidence)
	}
	if len(fc.calls) != len(cleaner.Cascade) {
		t.Errorf("cleaner ran %v, want the full cascade", fc.calls)
	}
}

func TestRun_NeverRepeatsStrategy(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategySectionBased)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{
		extractor.NotARecipe(0.9),
		extractor.NotARecipe(0.9),
		extractor.NotARecipe(0.9),
	}}
	p := newTestPipeline(t, fc, fe, nil)

	if _, err := p.Run(context.Background(), "<html/>", testURL); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seen := map[cleaner.Strategy]int{}
	for _, s := range fc.calls {
		seen[s]++
		if seen[s] > 1 {
			t.Errorf("strategy %s attempted twice", s)
		}
	}
	// First pick was section_based, so the most restrictive strategy must
	// never run.
	if seen[cleaner.StrategyStructuredData] != 0 {
		t.Error("cascade went backwards to a more restrictive strategy")
	}
}

func TestRun_AdaptiveDisabledAcceptsFirstVerdict(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{extractor.NotARecipe(0.99)}}
	p := newTestPipeline(t, fc, fe, nil, WithAdaptiveCleaning(false))

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.IsRecipe || fe.calls != 1 {
		t.Errorf("resp = %+v after %d calls, want single accepted negative", resp, fe.calls)
	}
}

func TestRun_ExtractorErrorPropagates(t *testing.T) {
	wantErr := errors.New("rate limited")
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{errs: []error{wantErr}}
	p := newTestPipeline(t, fc, fe, nil)

	_, err := p.Run(context.Background(), "<html/>", testURL)
	if !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want wrapped extractor error", err)
	}
}

func TestRun_CleanerErrorPropagates(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fc.err = errors.New("malformed document")
	fe := &scriptedExtractor{}
	p := newTestPipeline(t, fc, fe, nil)

	if _, err := p.Run(context.Background(), "<html/>", testURL); err == nil {
		t.Fatal("expected cleaning error")
	}
	if fe.calls != 0 {
		t.Errorf("extractor called %d times after cleaning failure", fe.calls)
	}
}

// --- Validation feedback loop ---

func TestRun_ValidationRetrySucceeds(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{
		brokenFound(),
		found("Fixed Recipe"),
	}}
	p := newTestPipeline(t, fc, fe, nil)

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !resp.IsRecipe {
		t.Fatal("expected corrected recipe")
	}
	if fe.feedbackCalls != 1 {
		t.Errorf("feedbackCalls = %d, want 1", fe.feedbackCalls)
	}
	if fe.lastFeedback == "" {
		t.Error("feedback call must carry the validation error text")
	}
	if resp.FirstRecipe().Metadata.Title != "Fixed Recipe" {
		t.Errorf("Title = %q", resp.FirstRecipe().Metadata.Title)
	}
}

func TestRun_ValidationExhaustionFailsClosed(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{
		brokenFound(),
		brokenFound(),
		brokenFound(),
	}}
	p := newTestPipeline(t, fc, fe, nil,
		WithValidationMaxRetries(2),
		WithAdaptiveCleaning(false))

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.IsRecipe {
		t.Error("exhausted validation must fail closed, not return a broken recipe")
	}
	if resp.Confidence != 0 {
		t.Errorf("Confidence = %v, want canonical 0", resp.Confidence)
	}
	if len(resp.Recipes) != 0 {
		t.Error("failed-closed response must carry no recipes")
	}
	if fe.feedbackCalls != 2 {
		t.Errorf("feedbackCalls = %d, want exactly the retry bound", fe.feedbackCalls)
	}
}

func TestRun_FeedbackRevisedVerdictTrusted(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{
		brokenFound(),
		extractor.NotARecipe(0.2),
	}}
	p := newTestPipeline(t, fc, fe, nil)

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.IsRecipe {
		t.Error("revised negative verdict must be returned")
	}
	if resp.Confidence != 0.2 {
		t.Errorf("Confidence = %v, want 0.2", resp.Confidence)
	}
	if fe.feedbackCalls != 1 {
		t.Errorf("feedbackCalls = %d, retrying after a revised verdict", fe.feedbackCalls)
	}
}

func TestRun_ZeroRetriesBypassesValidation(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{brokenFound()}}
	p := newTestPipeline(t, fc, fe, nil,
		WithValidationMaxRetries(0),
		WithAdaptiveCleaning(false))

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !resp.IsRecipe {
		t.Error("bypass mode must trust the model's structure")
	}
	if fe.feedbackCalls != 0 {
		t.Errorf("feedbackCalls = %d, want 0 in bypass mode", fe.feedbackCalls)
	}
}

// --- Post-processing ---

func TestRun_PostProcessesRecipes(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	resp := found("Carbonara")
	resp.Recipes[0].Metadata.SourceURL = "https://attacker.example/spoofed"
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{resp}}
	p := newTestPipeline(t, fc, fe, nil, WithSchemaVersion("2.1"))

	got, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	meta := got.FirstRecipe().Metadata
	if meta.SourceURL != testURL {
		t.Errorf("SourceURL = %q, want canonical %q", meta.SourceURL, testURL)
	}
	if meta.SchemaVersion != "2.1" {
		t.Errorf("SchemaVersion = %q, want 2.1", meta.SchemaVersion)
	}
	if meta.IngestedAt.IsZero() {
		t.Error("IngestedAt not stamped")
	}
}

// --- Caching ---

func TestRun_CacheHitSkipsExtraction(t *testing.T) {
	store := newMemStore()
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{found("Cached Carbonara")}}
	p := newTestPipeline(t, fc, fe, store)

	first, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if fe.calls != 1 {
		t.Fatalf("first run: extractor calls = %d", fe.calls)
	}

	second, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if fe.calls != 1 {
		t.Errorf("extractor called again on cache hit (%d calls)", fe.calls)
	}
	if !second.IsRecipe {
		t.Fatal("cached response lost the positive verdict")
	}
	if second.FirstRecipe().Metadata.Title != first.FirstRecipe().Metadata.Title {
		t.Error("cached recipe differs from original")
	}
}

func TestRun_TrackingParamsShareCacheEntry(t *testing.T) {
	store := newMemStore()
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{found("Carbonara")}}
	p := newTestPipeline(t, fc, fe, store)

	if _, err := p.Run(context.Background(), "<html/>", testURL+"?id=1"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := p.Run(context.Background(), "<html/>", testURL+"?id=1&utm_source=tw"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fe.calls != 1 {
		t.Errorf("extractor calls = %d, tracking-noise URL must hit the cache", fe.calls)
	}
	if len(store.entries) != 1 {
		t.Errorf("store holds %d entries, want 1", len(store.entries))
	}
}

func TestRun_NegativeVerdictCached(t *testing.T) {
	store := newMemStore()
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{extractor.NotARecipe(0.1)}}
	p := newTestPipeline(t, fc, fe, store)

	if _, err := p.Run(context.Background(), "<html/>", testURL); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fe.calls != 1 {
		t.Errorf("extractor calls = %d, negative verdicts must be cached too", fe.calls)
	}
	if resp.IsRecipe {
		t.Error("cached negative came back positive")
	}
}

func TestRun_ErrorNotCached(t *testing.T) {
	store := newMemStore()
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{
		errs:      []error{errors.New("timeout")},
		responses: []*extractor.ExtractionResponse{nil, found("Carbonara")},
	}
	p := newTestPipeline(t, fc, fe, store)

	if _, err := p.Run(context.Background(), "<html/>", testURL); err == nil {
		t.Fatal("expected first run to fail")
	}
	if len(store.entries) != 0 {
		t.Fatal("failed run must not write a cache entry")
	}

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !resp.IsRecipe {
		t.Error("retry after error should extract fresh")
	}
}

func TestRun_CacheFailuresDegradeGracefully(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk io error")
	store.putErr = errors.New("disk io error")
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{found("Carbonara")}}
	p := newTestPipeline(t, fc, fe, store)

	resp, err := p.Run(context.Background(), "<html/>", testURL)
	if err != nil {
		t.Fatalf("Run() must not fail on cache trouble, got %v", err)
	}
	if !resp.IsRecipe {
		t.Error("extraction result lost")
	}
}

func TestRun_InvalidURLFailsBeforeExtraction(t *testing.T) {
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{}
	p := newTestPipeline(t, fc, fe, nil)

	if _, err := p.Run(context.Background(), "<html/>", "not a url"); err == nil {
		t.Fatal("expected error for unusable source URL")
	}
	if fe.calls != 0 {
		t.Errorf("extractor called %d times for invalid URL", fe.calls)
	}
}

func TestCacheSize(t *testing.T) {
	store := newMemStore()
	fc := newFakeCleaner(cleaner.StrategyStructuredData)
	fe := &scriptedExtractor{responses: []*extractor.ExtractionResponse{
		found("A"),
		found("B"),
	}}
	p := newTestPipeline(t, fc, fe, store)

	ctx := context.Background()
	if _, err := p.Run(ctx, "<html/>", testURL+"/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(ctx, "<html/>", testURL+"/b"); err != nil {
		t.Fatal(err)
	}

	if got := p.CacheSize(ctx); got != 2 {
		t.Errorf("CacheSize() = %d, want 2", got)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(WithProvider("llamacpp"), WithCacheEnabled(false))
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
