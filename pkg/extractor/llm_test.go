package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/platewise/platewise/pkg/llm"
	"github.com/platewise/platewise/pkg/recipe"
)

// validationPrior returns an incomplete recipe the way a failed model
// attempt would look.
func validationPrior() *recipe.Recipe {
	return &recipe.Recipe{
		Metadata:    &recipe.Metadata{Title: "Half Extracted"},
		Ingredients: []recipe.Ingredient{{Name: "flour"}},
	}
}

// scriptedProvider is a test provider returning canned responses.
type scriptedProvider struct {
	content string
	err     error
	lastReq llm.Request
}

func (p *scriptedProvider) Execute(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{
		Content: p.content,
		Usage:   llm.Usage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-model" }

func TestLLMExtractor_Extract(t *testing.T) {
	p := &scriptedProvider{content: `{
		"is_recipe": true,
		"confidence": 0.7,
		"recipes": [{
			"metadata": {"title": "Carbonara"},
			"ingredients": [{"name": "spaghetti", "quantity": 400, "unit": "g"}],
			"instructions": [{"step": 1, "text": "Boil."}]
		}]
	}`}
	e := NewLLM(p, DefaultConfig())

	got, err := e.Extract(context.Background(), "page content", "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !got.IsRecipe {
		t.Fatal("IsRecipe = false, want true")
	}
	if got.Confidence != 1.0 {
		t.Errorf("Confidence = %v, positive results must be pinned to 1.0", got.Confidence)
	}
	if len(got.Recipes) != 1 || got.Recipes[0].Title() != "Carbonara" {
		t.Errorf("unexpected recipes %+v", got.Recipes)
	}
	if got.Usage.InputTokens != 100 || got.Usage.OutputTokens != 50 {
		t.Errorf("Usage = %+v", got.Usage)
	}
	if got.RawText == "" {
		t.Error("RawText must carry the raw model output")
	}

	if len(p.lastReq.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(p.lastReq.Messages))
	}
	if p.lastReq.Messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %s, want system", p.lastReq.Messages[0].Role)
	}
	if p.lastReq.JSONSchema == nil {
		t.Error("request must carry the response schema")
	}
}

func TestLLMExtractor_Negative(t *testing.T) {
	p := &scriptedProvider{content: `{"is_recipe": false, "confidence": 0.8}`}
	e := NewLLM(p, DefaultConfig())

	got, err := e.Extract(context.Background(), "blog post", "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.IsRecipe {
		t.Error("IsRecipe = true, want false")
	}
	if got.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", got.Confidence)
	}
	if got.Recipes != nil {
		t.Errorf("negative result must carry no recipes, got %v", got.Recipes)
	}
}

func TestLLMExtractor_NormalizeInvariants(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantIsRecipe   bool
		wantConfidence float64
	}{
		{
			"positive_without_recipes_flipped",
			`{"is_recipe": true, "confidence": 0.9, "recipes": []}`,
			false, 0.9,
		},
		{
			"negative_confidence_clamped_high",
			`{"is_recipe": false, "confidence": 1.7}`,
			false, 1.0,
		},
		{
			"negative_confidence_clamped_low",
			`{"is_recipe": false, "confidence": -0.3}`,
			false, 0.0,
		},
		{
			"negative_with_recipes_dropped",
			`{"is_recipe": false, "confidence": 0.5, "recipes": [{"metadata": {"title": "x"}}]}`,
			false, 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{content: tt.content}
			e := NewLLM(p, DefaultConfig())

			got, err := e.Extract(context.Background(), "content", "https://example.com")
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got.IsRecipe != tt.wantIsRecipe {
				t.Errorf("IsRecipe = %v, want %v", got.IsRecipe, tt.wantIsRecipe)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if !got.IsRecipe && got.Recipes != nil {
				t.Error("negative result must carry no recipes")
			}
		})
	}
}

func TestLLMExtractor_MarkdownWrappedResponse(t *testing.T) {
	p := &scriptedProvider{content: "```json\n{\"is_recipe\": false, \"confidence\": 0.2}\n```"}
	e := NewLLM(p, DefaultConfig())

	got, err := e.Extract(context.Background(), "content", "https://example.com")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Confidence != 0.2 {
		t.Errorf("Confidence = %v, want 0.2", got.Confidence)
	}
}

func TestLLMExtractor_ProviderError(t *testing.T) {
	wantErr := errors.New("api unavailable")
	p := &scriptedProvider{err: wantErr}
	e := NewLLM(p, DefaultConfig())

	_, err := e.Extract(context.Background(), "content", "https://example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error %v does not wrap provider error", err)
	}
}

func TestLLMExtractor_MalformedJSON(t *testing.T) {
	p := &scriptedProvider{content: "I think this page has a recipe but I forgot the JSON"}
	e := NewLLM(p, DefaultConfig())

	_, err := e.Extract(context.Background(), "content", "https://example.com")
	if err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestLLMExtractor_ExtractWithFeedback(t *testing.T) {
	p := &scriptedProvider{content: `{"is_recipe": false, "confidence": 0.1}`}
	e := NewLLM(p, DefaultConfig())

	prior := validationPrior()
	_, err := e.ExtractWithFeedback(context.Background(), "content", prior, "field 'Instructions': is required")
	if err != nil {
		t.Fatalf("ExtractWithFeedback() error = %v", err)
	}

	userMsg := p.lastReq.Messages[1].Content
	for _, want := range []string{"Previous Attempt", "Validation Errors", "Instructions", "content"} {
		if !strings.Contains(userMsg, want) {
			t.Errorf("feedback prompt missing %q", want)
		}
	}
}

func TestNotARecipe_Clamps(t *testing.T) {
	if got := NotARecipe(1.5); got.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", got.Confidence)
	}
	if got := NotARecipe(-1); got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
}

func TestFound_PinsConfidence(t *testing.T) {
	got := Found(nil)
	if !got.IsRecipe || got.Confidence != 1.0 {
		t.Errorf("Found() = %+v", got)
	}
}

func TestFirstRecipe(t *testing.T) {
	var nilResp *ExtractionResponse
	if nilResp.FirstRecipe() != nil {
		t.Error("nil response FirstRecipe() should be nil")
	}
	if NotARecipe(0).FirstRecipe() != nil {
		t.Error("negative response FirstRecipe() should be nil")
	}

	first := validationPrior()
	resp := Found([]*recipe.Recipe{first, validationPrior()})
	if resp.FirstRecipe() != first {
		t.Error("FirstRecipe() should return the first candidate")
	}
}
