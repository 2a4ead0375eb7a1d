package llm

// ErrorResponse represents an error returned to an API client.
type ErrorResponse struct {
	Error string `json:"error"`
}
