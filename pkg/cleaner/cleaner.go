// Package cleaner reduces raw page HTML to an LLM-friendly subset.
//
// Cleaning strategies vary in aggressiveness and form a fixed cascade from
// most restrictive to least restrictive. Every strategy is a deterministic
// pure function of (html, strategy); given the same inputs it always
// produces the same output.
package cleaner

// Metrics describes how much a cleaning pass reduced the input.
type Metrics struct {
	Strategy    Strategy
	InputBytes  int
	OutputBytes int
}

// Reduction returns the fraction of input removed, in [0,1].
func (m Metrics) Reduction() float64 {
	if m.InputBytes == 0 {
		return 0
	}
	return 1 - float64(m.OutputBytes)/float64(m.InputBytes)
}

// Cleaner transforms raw HTML into cleaned content for extraction.
type Cleaner interface {
	// CleanBest cleans with the most restrictive strategy that yields
	// usable output and reports which strategy it used.
	CleanBest(html, url string) (cleaned string, used Strategy, metrics Metrics, err error)

	// CleanWith force-cleans with the exact strategy given.
	CleanWith(html, url string, strategy Strategy) (cleaned string, metrics Metrics, err error)
}
