// Package llm provides internal representations of OpenAI-compatible chat
// completion requests and responses, plus a non-streaming client.
package llm

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}
