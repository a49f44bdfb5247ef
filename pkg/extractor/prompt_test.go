package extractor

import (
	"strings"
	"testing"

	"github.com/platewise/platewise/pkg/recipe"
)

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("some cleaned content", "https://example.com/recipe", 0)

	if !strings.Contains(got, "https://example.com/recipe") {
		t.Error("prompt missing source URL")
	}
	if !strings.Contains(got, "some cleaned content") {
		t.Error("prompt missing content")
	}
}

func TestBuildPrompt_Truncates(t *testing.T) {
	content := strings.Repeat("x", 500)
	got := BuildPrompt(content, "https://example.com", 100)

	if strings.Contains(got, strings.Repeat("x", 101)) {
		t.Error("content not truncated")
	}
	if !strings.Contains(got, "[Content truncated due to length...]") {
		t.Error("missing truncation marker")
	}
}

func TestBuildFeedbackPrompt(t *testing.T) {
	prior := &recipe.Recipe{
		Metadata:    &recipe.Metadata{Title: "Broken Extraction"},
		Ingredients: []recipe.Ingredient{{Name: "flour"}},
	}
	errMsg := "field 'Instructions': is required"

	got := BuildFeedbackPrompt("page content", prior, errMsg, 0)

	if !strings.Contains(got, "## Previous Attempt") {
		t.Error("missing previous attempt section")
	}
	if !strings.Contains(got, "Broken Extraction") {
		t.Error("missing prior recipe JSON")
	}
	if !strings.Contains(got, "## Validation Errors") {
		t.Error("missing validation errors section")
	}
	if !strings.Contains(got, errMsg) {
		t.Error("missing validation error message")
	}
	if !strings.Contains(got, "page content") {
		t.Error("missing webpage content")
	}
	if !strings.Contains(got, "no recipe") {
		t.Error("feedback prompt must allow a negative verdict")
	}
}

func TestTruncateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"no_limit", "hello", 0, "hello"},
		{"under_limit", "hello", 100, "hello"},
		{"at_limit", "hello", 5, "hello"},
		{"over_limit", "hello world", 5, "hello\n\n[Content truncated due to length...]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateContent(tt.content, tt.maxLen); got != tt.want {
				t.Errorf("TruncateContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain_json", `{"is_recipe":true}`, `{"is_recipe":true}`},
		{"json_block", "```json\n{\"is_recipe\":true}\n```", `{"is_recipe":true}`},
		{"bare_block", "```\n{\"is_recipe\":true}\n```", `{"is_recipe":true}`},
		{"surrounding_whitespace", "  ```json\n{}\n```  ", "{}"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownCodeBlock(tt.input); got != tt.want {
				t.Errorf("StripMarkdownCodeBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponseSchema(t *testing.T) {
	schema := ResponseSchema()

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema missing properties")
	}
	for _, key := range []string{"is_recipe", "confidence", "recipes"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}
}
