// Package utilization estimates how much of the host assistant's
// context window a transcript file is consuming, using the same crude
// byte-length heuristic as internal/tokens.
package utilization

import "os"

// windowTokens is the assumed size of the context window denominator.
const windowTokens = 200000

// Estimate is the result of measuring a transcript file's size.
type Estimate struct {
	Bytes           int64
	EstimatedTokens int
	Utilization     float64
}

// EstimateUtilization reads only the file's size at path (never its
// contents) and converts it to a rough token count and a fraction of
// windowTokens. A missing or unreadable file yields the zero Estimate
// rather than an error.
func EstimateUtilization(path string) Estimate {
	info, err := os.Stat(path)
	if err != nil {
		return Estimate{}
	}

	size := info.Size()
	estTokens := int(size / 4)

	return Estimate{
		Bytes:           size,
		EstimatedTokens: estTokens,
		Utilization:     float64(estTokens) / float64(windowTokens),
	}
}
