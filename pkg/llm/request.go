package llm

// ChatRequest represents a chat completion request (OpenAI-compatible).
type ChatRequest struct {
	Model       string    `json:"model"`       // Model name (e.g., "gpt-4o-mini")
	Messages    []Message `json:"messages"`    // Conversation history
	MaxTokens   int       `json:"max_tokens"`  // Max tokens to generate
	Temperature float64   `json:"temperature"` // Sampling temperature (0.0-2.0)
	Stream      bool      `json:"stream"`      // Always false, the relay never streams
}
