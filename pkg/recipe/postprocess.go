package recipe

import "time"

// PlaceholderTitle is used when model output carries no metadata at all.
const PlaceholderTitle = "Untitled Recipe"

// PostProcessor overwrites the fields that must never be trusted from
// model output: the canonical source URL, the ingestion timestamp and the
// schema version. All other fields pass through unchanged.
type PostProcessor struct {
	SchemaVersion string
	// Now supplies the ingestion timestamp; defaults to time.Now.
	Now func() time.Time
}

// NewPostProcessor creates a post-processor stamping the given schema version.
func NewPostProcessor(schemaVersion string) *PostProcessor {
	return &PostProcessor{SchemaVersion: schemaVersion, Now: time.Now}
}

// Process returns a new recipe with the deterministic fields overwritten.
// The input recipe is not mutated. A recipe without metadata gets a minimal
// metadata block with a placeholder title.
func (p *PostProcessor) Process(r *Recipe, sourceURL string) *Recipe {
	if r == nil {
		return nil
	}

	out := r.Clone()
	if out.Metadata == nil {
		out.Metadata = &Metadata{Title: PlaceholderTitle}
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	out.Metadata.SourceURL = sourceURL
	out.Metadata.IngestedAt = now().UTC()
	out.Metadata.SchemaVersion = p.SchemaVersion
	return out
}
