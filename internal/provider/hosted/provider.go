// Package hosted adapts the OpenAI chat completions API to domain.Provider.
package hosted

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/extract"
	"github.com/tjfontaine/tutor-gateway/internal/provider"
)

// ProviderName is reported by Name and used in error messages.
const ProviderName = "hosted"

// replyPaths are tried in order against the raw completion body.
var replyPaths = extract.Paths{
	"choices.0.message.content",
	"choices.0.text",
	"output_text",
	"message.content",
}

// Provider implements domain.Provider with the openai-go SDK. SDK retries
// are disabled; callers retry.
type Provider struct {
	client openai.Client
}

// New creates a new hosted provider. Extra options are passed to the SDK
// client, e.g. option.WithBaseURL or option.WithHTTPClient.
func New(apiKey string, opts ...option.RequestOption) *Provider {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &Provider{client: openai.NewClient(append(base, opts...)...)}
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderKindHosted
}

// Complete sends the conversation to the chat completions endpoint and
// extracts the reply from the raw body.
func (p *Provider) Complete(ctx context.Context, req *domain.GenerationRequest) (*domain.NormalizedReply, error) {
	var (
		raw      []byte
		httpResp *http.Response
	)

	_, err := p.client.Chat.Completions.New(ctx, toParams(req),
		option.WithResponseBodyInto(&raw),
		option.WithResponseInto(&httpResp),
	)
	if err != nil {
		return nil, classify(ctx, err, httpResp)
	}

	text, err := replyPaths.Text(raw)
	if err != nil {
		return nil, provider.MalformedError(ProviderName, err).WithDetails(provider.Truncate(string(raw), 512))
	}

	return &domain.NormalizedReply{Content: text}, nil
}

func toParams(req *domain.GenerationRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// classify maps SDK failures onto upstream errors.
func classify(ctx context.Context, err error, httpResp *http.Response) *domain.APIError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		details := apiErr.Message
		if details == "" {
			details = apiErr.RawJSON()
		}
		return provider.StatusError(ProviderName, apiErr.StatusCode, []byte(details)).WithCause(err)
	}
	if httpResp != nil && httpResp.StatusCode >= 400 {
		return provider.StatusError(ProviderName, httpResp.StatusCode, nil).WithCause(err)
	}
	return provider.TransportError(ctx, ProviderName, err)
}
