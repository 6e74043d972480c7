package domain

import "strings"

// Message represents a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is the validated form of an inbound generation call.
type GenerationRequest struct {
	// Model selects the provider and, after routing, the upstream model name.
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	// MaxTokens is an optional length budget forwarded to the provider.
	// Zero leaves the provider default in place.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// PromptText concatenates every message for token estimation.
func (r *GenerationRequest) PromptText() string {
	var b strings.Builder
	for i, m := range r.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// NormalizedReply is the single shape every provider response collapses into.
type NormalizedReply struct {
	Content string `json:"content"`
}

// ProviderKind identifies one of the supported upstream families.
type ProviderKind string

const (
	ProviderKindLocal  ProviderKind = "local"
	ProviderKindHosted ProviderKind = "hosted"
)

// Route is the provider selection for one request. It is never persisted.
type Route struct {
	Kind  ProviderKind
	Model string
}
