// Package ollama provides the wire types and HTTP client for a local Ollama
// model server's native chat API.
package ollama

import (
	"encoding/json"
	"fmt"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *ChatOptions  `json:"options,omitempty"`
}

// ChatMessage is one turn of the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions carries model parameters.
type ChatOptions struct {
	// NumPredict caps the number of generated tokens.
	NumPredict int `json:"num_predict,omitempty"`
}

// ErrorResponse is the body Ollama returns on failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ollama error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ollama error (status %d)", e.StatusCode)
}

// parseStatusError builds a StatusError, lifting the message out of an
// Ollama error body when there is one.
func parseStatusError(status int, body []byte) *StatusError {
	e := &StatusError{StatusCode: status, Body: body}
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		e.Message = errResp.Error
	}
	return e
}
