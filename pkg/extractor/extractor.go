// Package extractor turns cleaned page content into recipe candidates via
// an LLM call.
package extractor

import (
	"context"

	"github.com/platewise/platewise/pkg/recipe"
)

// ExtractionResponse is the outcome of one extraction call.
//
// Invariants: IsRecipe implies Recipes is non-empty and Confidence is 1.0;
// !IsRecipe implies Recipes is empty. Confidence is only meaningful when
// IsRecipe is false, where it signals how likely the page still contains a
// recipe that the cleaning step hid.
type ExtractionResponse struct {
	IsRecipe   bool             `json:"is_recipe"`
	Confidence float64          `json:"confidence"`
	Recipes    []*recipe.Recipe `json:"recipes,omitempty"`
	RawText    string           `json:"-"`
	Usage      Usage            `json:"-"`
}

// Usage tracks token consumption across extraction calls.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// NotARecipe builds a response stating the content holds no recipe.
func NotARecipe(confidence float64) *ExtractionResponse {
	return &ExtractionResponse{IsRecipe: false, Confidence: clamp01(confidence)}
}

// Found builds a successful response. Per the response invariants the
// confidence of a positive result is pinned at 1.0.
func Found(recipes []*recipe.Recipe) *ExtractionResponse {
	return &ExtractionResponse{IsRecipe: true, Confidence: 1.0, Recipes: recipes}
}

// FirstRecipe returns the first candidate, or nil when there is none.
func (r *ExtractionResponse) FirstRecipe() *recipe.Recipe {
	if r == nil || len(r.Recipes) == 0 {
		return nil
	}
	return r.Recipes[0]
}

// Extractor performs LLM-backed recipe extraction.
//
// Transport and API failures are returned as errors and propagate to the
// caller unmodified; the feedback variant exists for structural validation
// retries, not for transport retries.
type Extractor interface {
	// Extract runs a first-pass extraction over cleaned content.
	Extract(ctx context.Context, content, sourceURL string) (*ExtractionResponse, error)

	// ExtractWithFeedback reruns extraction including a prior attempt and
	// the validation error it produced, asking for a corrected structure.
	ExtractWithFeedback(ctx context.Context, content string, prior *recipe.Recipe, errorMessage string) (*ExtractionResponse, error)

	// Name returns the extractor identifier.
	Name() string
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
