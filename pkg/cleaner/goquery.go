package cleaner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/platewise/platewise/internal/logger"
)

// minUsableBytes is the smallest cleaned output CleanBest accepts before
// falling through to a less restrictive strategy.
const minUsableBytes = 64

// GoqueryCleaner implements the cleaning cascade with goquery selectors.
type GoqueryCleaner struct{}

// New creates the default goquery-backed cleaner.
func New() *GoqueryCleaner {
	return &GoqueryCleaner{}
}

// CleanBest tries the cascade most-restrictive first and returns the first
// strategy whose output is non-trivial. The fallback strategy always
// produces output, so CleanBest cannot come back empty-handed.
func (c *GoqueryCleaner) CleanBest(html, url string) (string, Strategy, Metrics, error) {
	for _, s := range Cascade {
		cleaned, metrics, err := c.CleanWith(html, url, s)
		if err != nil {
			return "", s, Metrics{}, err
		}
		if len(cleaned) >= minUsableBytes || s == StrategyFallback {
			logger.Debug("cleaner best pick",
				"url", url,
				"strategy", s.String(),
				"input_bytes", metrics.InputBytes,
				"output_bytes", metrics.OutputBytes)
			return cleaned, s, metrics, nil
		}
	}
	// Unreachable: the fallback branch above always returns.
	return "", StrategyFallback, Metrics{}, fmt.Errorf("cleaning cascade produced no output")
}

// CleanWith force-cleans with the exact strategy given.
func (c *GoqueryCleaner) CleanWith(html, url string, strategy Strategy) (string, Metrics, error) {
	var cleaned string
	var err error

	switch strategy {
	case StrategyStructuredData:
		cleaned, err = cleanStructuredData(html)
	case StrategySectionBased:
		cleaned, err = cleanSectionBased(html)
	case StrategyContentFilter:
		cleaned, err = cleanContentFilter(html)
	case StrategyFallback:
		cleaned = collapseWhitespace(html)
	default:
		return "", Metrics{}, fmt.Errorf("unknown cleaning strategy %d", int(strategy))
	}
	if err != nil {
		return "", Metrics{}, fmt.Errorf("clean with %s: %w", strategy, err)
	}

	return cleaned, Metrics{
		Strategy:    strategy,
		InputBytes:  len(html),
		OutputBytes: len(cleaned),
	}, nil
}

// cleanStructuredData keeps only schema.org JSON-LD blocks that mention a
// Recipe type. This is the most restrictive strategy: pages without recipe
// structured data produce no output at all.
func cleanStructuredData(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		if strings.Contains(text, `"Recipe"`) || strings.Contains(text, `"recipe"`) {
			blocks = append(blocks, text)
		}
	})

	return strings.Join(blocks, "\n"), nil
}

// recipeSectionSelector matches containers that commonly hold the recipe
// body on cooking sites.
const recipeSectionSelector = `[itemtype*="Recipe"], [class*="recipe"], [id*="recipe"], article, main`

// cleanSectionBased keeps the text of recipe-looking sections only.
func cleanSectionBased(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, svg").Remove()

	var parts []string
	doc.Find(recipeSectionSelector).Each(func(_ int, s *goquery.Selection) {
		text := collapseWhitespace(s.Text())
		// Nested matches repeat their parent's text; keep the outermost only.
		if text != "" && !contained(parts, text) {
			parts = append(parts, text)
		}
	})

	return strings.Join(parts, "\n"), nil
}

// contained reports whether text is a substring of any collected part.
func contained(parts []string, text string) bool {
	for _, p := range parts {
		if strings.Contains(p, text) {
			return true
		}
	}
	return false
}

// cleanContentFilter strips scripts, styles and page chrome, returning the
// remaining body text.
func cleanContentFilter(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, svg, nav, header, footer, aside, form, button").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return collapseWhitespace(doc.Text()), nil
	}
	return collapseWhitespace(body.Text()), nil
}

// collapseWhitespace normalizes runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
