package hosted

import (
	"github.com/openai/openai-go/option"
	"github.com/tjfontaine/tutor-gateway/internal/config"
	"github.com/tjfontaine/tutor-gateway/internal/provider"
)

// CreateFromConfig builds the hosted provider. It returns nil when the
// provider is disabled or has no API key.
func CreateFromConfig(cfg config.HostedConfig) *Provider {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(provider.NewHTTPClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return New(cfg.APIKey, opts...)
}
