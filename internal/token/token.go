// Package token provides pluggable token-cost estimation.
//
// Estimates gate eviction thresholds and context budgets; they do not need
// to be billing-accurate. The default heuristic (~4 chars per token) is
// within ~10% for English text.
package token

// Estimator maps text to an approximate token cost. Implementations must be
// deterministic and side-effect free; the store caches the result at
// add-time and never recomputes it.
type Estimator func(text string) int

// Chars is the default estimator: ceil(len/4).
func Chars(text string) int {
	return (len(text) + 3) / 4
}

// CharsPerToken returns an estimator using a custom characters-per-token
// ratio. Ratios <= 0 fall back to 4.
func CharsPerToken(n int) Estimator {
	if n <= 0 {
		n = 4
	}
	return func(text string) int {
		return (len(text) + n - 1) / n
	}
}
