package llm

// Options contains per-call inference parameters. Nil fields keep the
// client's defaults.
type Options struct {
	MaxTokens   *int     // Max tokens to generate
	Temperature *float64 // Sampling temperature
}

// NewOptions returns Options with both fields set.
func NewOptions(maxTokens int, temperature float64) *Options {
	return &Options{MaxTokens: &maxTokens, Temperature: &temperature}
}
