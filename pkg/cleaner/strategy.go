package cleaner

import "fmt"

// Strategy identifies one HTML cleaning strategy. Strategies form a fixed
// total order from most restrictive (keeps the least HTML) to least
// restrictive (keeps the rawest HTML); the integer value is the rank.
type Strategy int

const (
	// StrategyStructuredData keeps only schema.org JSON-LD recipe blocks.
	StrategyStructuredData Strategy = iota
	// StrategySectionBased keeps recipe-looking page sections.
	StrategySectionBased
	// StrategyContentFilter strips scripts, styles and chrome, keeping text.
	StrategyContentFilter
	// StrategyFallback passes the raw HTML through, whitespace-collapsed.
	StrategyFallback
)

// Cascade is the process-wide strategy order, most restrictive first.
var Cascade = []Strategy{
	StrategyStructuredData,
	StrategySectionBased,
	StrategyContentFilter,
	StrategyFallback,
}

// Rank returns the position of the strategy in the cascade.
func (s Strategy) Rank() int { return int(s) }

func (s Strategy) String() string {
	switch s {
	case StrategyStructuredData:
		return "structured_data"
	case StrategySectionBased:
		return "section_based"
	case StrategyContentFilter:
		return "content_filter"
	case StrategyFallback:
		return "fallback"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// After returns the strategies ordered strictly after s in the cascade.
// For the last strategy it returns an empty slice.
func After(s Strategy) []Strategy {
	for i, c := range Cascade {
		if c == s {
			return Cascade[i+1:]
		}
	}
	return nil
}
