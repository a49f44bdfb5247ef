package pipeline

import (
	"context"
	"fmt"

	"github.com/platewise/platewise/internal/logger"
	"github.com/platewise/platewise/pkg/cleaner"
	"github.com/platewise/platewise/pkg/extractor"
)

// runAdaptive drives the cleaning-strategy cascade.
//
// The first pass uses the cleaner's own best pick. When that pass comes
// back "not a recipe" with confidence at or above the threshold, the model
// is effectively saying the cleaning may have hidden a recipe, so the
// cascade resumes with strictly less restrictive strategies. A confidence
// below the threshold means the page genuinely holds no recipe and less
// cleaning would not help.
//
// A strategy is never attempted twice, and strategies ordered before the
// first pick are never attempted at all.
func (p *Pipeline) runAdaptive(ctx context.Context, html, sourceURL string) (*extractor.ExtractionResponse, error) {
	cleaned, used, metrics, err := p.cleaner.CleanBest(html, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("cleaning failed: %w", err)
	}
	logger.Debug("adaptive first pass",
		"url", sourceURL,
		"strategy", used.String(),
		"reduction", metrics.Reduction())

	resp, err := p.extractValidated(ctx, cleaned, sourceURL)
	if err != nil {
		return nil, err
	}

	if resp.IsRecipe {
		return resp, nil
	}
	if !p.config.AdaptiveCleaning {
		logger.Debug("adaptive retry disabled, accepting first pass", "url", sourceURL)
		return resp, nil
	}
	if resp.Confidence < p.config.ConfidenceThreshold {
		logger.Debug("confidence below threshold, accepting verdict",
			"url", sourceURL,
			"confidence", resp.Confidence,
			"threshold", p.config.ConfidenceThreshold)
		return resp, nil
	}

	for _, strategy := range cleaner.After(used) {
		cleaned, metrics, err = p.cleaner.CleanWith(html, sourceURL, strategy)
		if err != nil {
			return nil, fmt.Errorf("cleaning failed: %w", err)
		}
		logger.Debug("adaptive retry with less restrictive cleaning",
			"url", sourceURL,
			"strategy", strategy.String(),
			"prior_confidence", resp.Confidence,
			"reduction", metrics.Reduction())

		resp, err = p.extractValidated(ctx, cleaned, sourceURL)
		if err != nil {
			return nil, err
		}

		if resp.IsRecipe {
			return resp, nil
		}
		if resp.Confidence < p.config.ConfidenceThreshold {
			logger.Debug("confidence collapsed, stopping cascade",
				"url", sourceURL,
				"strategy", strategy.String(),
				"confidence", resp.Confidence)
			return resp, nil
		}
	}

	// Cascade exhausted; the last response is a definitive negative.
	return resp, nil
}
