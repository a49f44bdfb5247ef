package pipeline

import (
	"context"

	"github.com/platewise/platewise/internal/logger"
	"github.com/platewise/platewise/pkg/extractor"
	"github.com/platewise/platewise/pkg/recipe"
)

// extractValidated runs one extraction and the validation feedback loop
// around it.
//
// Negative verdicts pass through unvalidated. Positive verdicts are
// validated structurally; on failure the extractor is re-prompted with the
// prior attempt and the violation text, up to ValidationMaxRetries times.
// When every attempt stays invalid the result is downgraded to a canonical
// "not a recipe" response: a malformed extraction is reported as "no
// recipe found", never surfaced as a partially-valid structure.
func (p *Pipeline) extractValidated(ctx context.Context, content, sourceURL string) (*extractor.ExtractionResponse, error) {
	resp, err := p.extractor.Extract(ctx, content, sourceURL)
	if err != nil {
		return nil, err
	}

	if !resp.IsRecipe {
		return resp, nil
	}

	// Explicit bypass mode: trust the model without verification.
	if p.config.ValidationMaxRetries == 0 {
		logger.Debug("validation bypassed", "url", sourceURL, "recipes", len(resp.Recipes))
		return p.finish(resp, sourceURL), nil
	}

	current := resp.FirstRecipe()
	result := p.validator.Validate(current)
	if result.IsValid() {
		return p.finish(resp, sourceURL), nil
	}
	errMsg := result.ErrorMessage()

	for attempt := 1; attempt <= p.config.ValidationMaxRetries; attempt++ {
		logger.Debug("validation failed, re-prompting with feedback",
			"url", sourceURL,
			"attempt", attempt,
			"max_retries", p.config.ValidationMaxRetries,
			"errors", errMsg)

		feedback, err := p.extractor.ExtractWithFeedback(ctx, content, current, errMsg)
		if err != nil {
			return nil, err
		}

		// The model revised its judgement; trust it and stop retrying.
		if !feedback.IsRecipe {
			logger.Debug("feedback pass revised verdict to not-a-recipe",
				"url", sourceURL, "confidence", feedback.Confidence)
			return feedback, nil
		}

		current = feedback.FirstRecipe()
		result = p.validator.Validate(current)
		if result.IsValid() {
			return p.finish(feedback, sourceURL), nil
		}
		errMsg = result.ErrorMessage()
	}

	logger.Debug("validation retries exhausted, failing closed",
		"url", sourceURL, "max_retries", p.config.ValidationMaxRetries)
	return extractor.NotARecipe(0), nil
}

// finish post-processes every produced recipe, overwriting the fields that
// must not be trusted from model output.
func (p *Pipeline) finish(resp *extractor.ExtractionResponse, sourceURL string) *extractor.ExtractionResponse {
	processed := make([]*recipe.Recipe, 0, len(resp.Recipes))
	for _, r := range resp.Recipes {
		processed = append(processed, p.post.Process(r, sourceURL))
	}

	out := extractor.Found(processed)
	out.RawText = resp.RawText
	out.Usage = resp.Usage
	return out
}
