// Package local adapts an Ollama model server to domain.Provider.
package local

import (
	"context"
	"errors"
	"net/http"

	"github.com/tjfontaine/tutor-gateway/internal/api/ollama"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/extract"
	"github.com/tjfontaine/tutor-gateway/internal/provider"
)

// ProviderName is reported by Name and used in error messages.
const ProviderName = "local"

// replyPaths are tried in order against the raw chat response. Ollama's
// native chat shape comes first, followed by its generate shape and the
// OpenAI-compatible shapes some local servers emit.
var replyPaths = extract.Paths{
	"message.content",
	"response",
	"choices.0.message.content",
	"choices.0.text",
}

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets the model server address.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// Provider implements domain.Provider against Ollama's /api/chat.
type Provider struct {
	client     *ollama.Client
	baseURL    string
	httpClient *http.Client
}

// New creates a new local provider.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []ollama.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, ollama.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, ollama.WithHTTPClient(p.httpClient))
	}

	p.client = ollama.NewClient(clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderKindLocal
}

// Complete sends the conversation to the model server. The model in req
// must already be resolved to a bare local model name.
func (p *Provider) Complete(ctx context.Context, req *domain.GenerationRequest) (*domain.NormalizedReply, error) {
	body, err := p.client.Chat(ctx, toChatRequest(req))
	if err != nil {
		var statusErr *ollama.StatusError
		if errors.As(err, &statusErr) {
			return nil, provider.StatusError(ProviderName, statusErr.StatusCode, statusErr.Body).WithCause(err)
		}
		return nil, provider.TransportError(ctx, ProviderName, err)
	}

	text, err := replyPaths.Text(body)
	if err != nil {
		return nil, provider.MalformedError(ProviderName, err).WithDetails(provider.Truncate(string(body), 512))
	}

	return &domain.NormalizedReply{Content: text}, nil
}

func toChatRequest(req *domain.GenerationRequest) *ollama.ChatRequest {
	out := &ollama.ChatRequest{
		Model:    req.Model,
		Messages: make([]ollama.ChatMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, ollama.ChatMessage{Role: m.Role, Content: m.Content})
	}
	if req.MaxTokens > 0 {
		out.Options = &ollama.ChatOptions{NumPredict: req.MaxTokens}
	}
	return out
}
