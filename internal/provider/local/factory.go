package local

import (
	"github.com/tjfontaine/tutor-gateway/internal/config"
	"github.com/tjfontaine/tutor-gateway/internal/provider"
)

// CreateFromConfig builds the local provider. It returns nil when the
// provider is disabled.
func CreateFromConfig(cfg config.LocalConfig) *Provider {
	if !cfg.Enabled {
		return nil
	}
	return New(
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(provider.NewHTTPClient(cfg.Timeout)),
	)
}
