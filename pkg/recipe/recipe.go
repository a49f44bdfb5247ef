// Package recipe defines the structured recipe document produced by
// extraction, plus validation and post-processing of model output.
package recipe

import "time"

// Recipe is a structured recipe document extracted from a web page.
// Instances are treated as immutable once produced; PostProcessor returns
// a modified copy rather than mutating in place.
type Recipe struct {
	Metadata     *Metadata     `json:"metadata" validate:"required"`
	Ingredients  []Ingredient  `json:"ingredients" validate:"required,min=1,dive"`
	Instructions []Instruction `json:"instructions" validate:"required,min=1,dive"`
	Nutrition    *Nutrition    `json:"nutrition,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
}

// Metadata holds recipe-level fields. SourceURL, IngestedAt and
// SchemaVersion are always overwritten by the post-processor and must not
// be trusted from model output.
type Metadata struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description,omitempty"`
	Servings      int       `json:"servings,omitempty" validate:"gte=0"`
	PrepMinutes   int       `json:"prep_minutes,omitempty" validate:"gte=0"`
	CookMinutes   int       `json:"cook_minutes,omitempty" validate:"gte=0"`
	SourceURL     string    `json:"source_url,omitempty"`
	IngestedAt    time.Time `json:"ingested_at,omitempty"`
	SchemaVersion string    `json:"schema_version,omitempty"`
}

// Ingredient is a single ingredient line.
type Ingredient struct {
	Name     string  `json:"name" validate:"required"`
	Quantity float64 `json:"quantity,omitempty" validate:"gte=0"`
	Unit     string  `json:"unit,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// Instruction is a single ordered cooking step.
type Instruction struct {
	Step int    `json:"step" validate:"gte=1"`
	Text string `json:"text" validate:"required"`
}

// Nutrition holds per-serving nutrition facts when the page provides them.
type Nutrition struct {
	Calories int `json:"calories,omitempty" validate:"gte=0"`
	Protein  int `json:"protein_g,omitempty" validate:"gte=0"`
	Carbs    int `json:"carbs_g,omitempty" validate:"gte=0"`
	Fat      int `json:"fat_g,omitempty" validate:"gte=0"`
}

// Clone returns a deep copy of the recipe.
func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	out := &Recipe{}
	if r.Metadata != nil {
		meta := *r.Metadata
		out.Metadata = &meta
	}
	if r.Ingredients != nil {
		out.Ingredients = make([]Ingredient, len(r.Ingredients))
		copy(out.Ingredients, r.Ingredients)
	}
	if r.Instructions != nil {
		out.Instructions = make([]Instruction, len(r.Instructions))
		copy(out.Instructions, r.Instructions)
	}
	if r.Nutrition != nil {
		n := *r.Nutrition
		out.Nutrition = &n
	}
	if r.Tags != nil {
		out.Tags = make([]string, len(r.Tags))
		copy(out.Tags, r.Tags)
	}
	return out
}

// Title returns the recipe title, or an empty string when metadata is absent.
func (r *Recipe) Title() string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	return r.Metadata.Title
}
