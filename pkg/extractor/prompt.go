package extractor

import (
	"encoding/json"
	"strings"

	"github.com/platewise/platewise/pkg/recipe"
)

// SystemPrompt is the shared system prompt for all LLM extraction calls.
const SystemPrompt = `You are a recipe extraction assistant. Decide whether webpage content contains one or more cooking recipes and extract them as structured data.

Content may be provided as JSON-LD, HTML, or plain text.

Respond with ONLY valid JSON matching the schema. No explanations.

Rules:
1. If the page contains no recipe, set is_recipe to false, leave recipes empty, and set confidence to the probability (0-1) that the original page still contains a recipe that this content no longer shows
2. If the page contains recipes, set is_recipe to true and extract every distinct recipe in page order
3. Quantities: extract numeric value only (no unit in the quantity field)
4. Instructions: one step per entry, numbered from 1 in page order
5. Omit nutrition entirely when the page does not state it`

// BuildPrompt creates the first-pass extraction prompt.
func BuildPrompt(content, sourceURL string, maxContentSize int) string {
	var prompt strings.Builder

	prompt.WriteString("Extract recipe data from the following webpage content.\n\n")
	prompt.WriteString("Source URL: ")
	prompt.WriteString(sourceURL)
	prompt.WriteString("\n\n## Webpage Content\n```\n")
	prompt.WriteString(TruncateContent(content, maxContentSize))
	prompt.WriteString("\n```\n")

	return prompt.String()
}

// BuildFeedbackPrompt creates a correction prompt carrying the prior
// attempt and the validation error it produced.
func BuildFeedbackPrompt(content string, prior *recipe.Recipe, errorMessage string, maxContentSize int) string {
	var prompt strings.Builder

	prompt.WriteString("Your previous recipe extraction failed validation. ")
	prompt.WriteString("Correct the errors and return the full extraction result again. ")
	prompt.WriteString("If on reflection the content contains no recipe, say so instead.\n")

	prompt.WriteString("\n## Previous Attempt\n```json\n")
	if priorJSON, err := json.MarshalIndent(prior, "", "  "); err == nil {
		prompt.Write(priorJSON)
	}
	prompt.WriteString("\n```\n")

	prompt.WriteString("\n## Validation Errors\n")
	prompt.WriteString(errorMessage)
	prompt.WriteString("\n")

	prompt.WriteString("\n## Webpage Content\n```\n")
	prompt.WriteString(TruncateContent(content, maxContentSize))
	prompt.WriteString("\n```\n")

	return prompt.String()
}

// TruncateContent limits content size to avoid token limits.
// maxLen of 0 means no limit.
func TruncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "\n\n[Content truncated due to length...]"
}

// StripMarkdownCodeBlock removes markdown code block wrappers from JSON
// responses. Some models wrap their JSON output in ```json ... ``` blocks.
func StripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}

	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// ResponseSchema is the JSON schema the model's structured output must
// match. It mirrors ExtractionResponse and the recipe document.
func ResponseSchema() map[string]any {
	ingredient := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":     map[string]any{"type": "string"},
			"quantity": map[string]any{"type": "number"},
			"unit":     map[string]any{"type": "string"},
			"note":     map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}

	instruction := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"step": map[string]any{"type": "integer"},
			"text": map[string]any{"type": "string"},
		},
		"required": []any{"step", "text"},
	}

	nutrition := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"calories":  map[string]any{"type": "integer"},
			"protein_g": map[string]any{"type": "integer"},
			"carbs_g":   map[string]any{"type": "integer"},
			"fat_g":     map[string]any{"type": "integer"},
		},
	}

	metadata := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":        map[string]any{"type": "string"},
			"description":  map[string]any{"type": "string"},
			"servings":     map[string]any{"type": "integer"},
			"prep_minutes": map[string]any{"type": "integer"},
			"cook_minutes": map[string]any{"type": "integer"},
		},
		"required": []any{"title"},
	}

	recipeSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"metadata":     metadata,
			"ingredients":  map[string]any{"type": "array", "items": ingredient},
			"instructions": map[string]any{"type": "array", "items": instruction},
			"nutrition":    nutrition,
			"tags":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"metadata", "ingredients", "instructions"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_recipe":  map[string]any{"type": "boolean"},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"recipes":    map[string]any{"type": "array", "items": recipeSchema},
		},
		"required": []any{"is_recipe", "confidence"},
	}
}
