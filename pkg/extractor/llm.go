package extractor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platewise/platewise/internal/logger"
	"github.com/platewise/platewise/pkg/llm"
	"github.com/platewise/platewise/pkg/recipe"
)

// Config holds shared configuration for LLM-based extraction.
type Config struct {
	// Temperature for LLM responses (default: 0.1).
	Temperature float64

	// MaxTokens for LLM responses (default: 8192).
	MaxTokens int

	// MaxContentSize limits input content in bytes (default: 100000, 0 = unlimited).
	MaxContentSize int
}

// DefaultConfig returns sensible defaults for LLM extraction.
func DefaultConfig() Config {
	return Config{
		Temperature:    0.1,
		MaxTokens:      8192,
		MaxContentSize: 100000,
	}
}

// LLMExtractor implements Extractor on top of an llm.Provider.
type LLMExtractor struct {
	provider llm.Provider
	config   Config
}

// NewLLM creates an extractor backed by the given provider.
func NewLLM(provider llm.Provider, cfg Config) *LLMExtractor {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultConfig().Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &LLMExtractor{provider: provider, config: cfg}
}

// Extract runs a first-pass extraction over cleaned content.
func (e *LLMExtractor) Extract(ctx context.Context, content, sourceURL string) (*ExtractionResponse, error) {
	prompt := BuildPrompt(content, sourceURL, e.config.MaxContentSize)
	return e.execute(ctx, prompt)
}

// ExtractWithFeedback reruns extraction with the prior attempt and its
// validation error included in the prompt.
func (e *LLMExtractor) ExtractWithFeedback(ctx context.Context, content string, prior *recipe.Recipe, errorMessage string) (*ExtractionResponse, error) {
	prompt := BuildFeedbackPrompt(content, prior, errorMessage, e.config.MaxContentSize)
	return e.execute(ctx, prompt)
}

// Name returns the extractor identifier.
func (e *LLMExtractor) Name() string {
	return e.provider.Name()
}

func (e *LLMExtractor) execute(ctx context.Context, prompt string) (*ExtractionResponse, error) {
	logger.Debug("extractor calling LLM",
		"provider", e.provider.Name(),
		"model", e.provider.Model(),
		"prompt_size", len(prompt),
		"max_tokens", e.config.MaxTokens)

	resp, err := e.provider.Execute(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		JSONSchema:  ResponseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("LLM completion failed: %w", err)
	}

	logger.Debug("extractor LLM response received",
		"response_size", len(resp.Content),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)

	jsonContent := StripMarkdownCodeBlock(resp.Content)

	var parsed ExtractionResponse
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response as JSON: %w (response: %s)", err, truncateForError(resp.Content))
	}

	parsed.RawText = resp.Content
	parsed.Usage = Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	normalize(&parsed)
	return &parsed, nil
}

// normalize enforces the ExtractionResponse invariants on model output:
// a positive result carries confidence 1.0 and at least one recipe, a
// negative result carries no recipes and a confidence in [0,1].
func normalize(r *ExtractionResponse) {
	if r.IsRecipe && len(r.Recipes) == 0 {
		// The model affirmed a recipe it did not produce; treat as a
		// low-information negative rather than trusting the claim.
		r.IsRecipe = false
	}
	if r.IsRecipe {
		r.Confidence = 1.0
		return
	}
	r.Recipes = nil
	r.Confidence = clamp01(r.Confidence)
}

// truncateForError truncates content for error messages.
func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
