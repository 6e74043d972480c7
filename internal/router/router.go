// Package router resolves which provider serves a generation request.
package router

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjfontaine/tutor-gateway/internal/config"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/provider/hosted"
	"github.com/tjfontaine/tutor-gateway/internal/provider/local"
)

// Rules are the process-wide routing inputs.
type Rules struct {
	ForceLocal  bool
	LocalPrefix string
	LocalModel  string
	HostedModel string
}

// RulesFromConfig extracts routing rules from configuration.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		ForceLocal:  cfg.Local.Force,
		LocalPrefix: cfg.Local.Prefix,
		LocalModel:  cfg.Local.DefaultModel,
		HostedModel: cfg.Hosted.DefaultModel,
	}
}

// Resolve maps a model identifier to a route. The local prefix is stripped;
// an identifier with nothing after the prefix, or an unprefixed identifier
// under ForceLocal, uses the default local model.
func (r Rules) Resolve(model string) domain.Route {
	model = strings.TrimSpace(model)

	hasPrefix := r.LocalPrefix != "" && strings.HasPrefix(model, r.LocalPrefix)
	if r.ForceLocal || hasPrefix {
		name := ""
		if hasPrefix {
			name = strings.TrimSpace(strings.TrimPrefix(model, r.LocalPrefix))
		}
		if name == "" {
			name = r.LocalModel
		}
		return domain.Route{Kind: domain.ProviderKindLocal, Model: name}
	}

	if model == "" {
		model = r.HostedModel
	}
	return domain.Route{Kind: domain.ProviderKindHosted, Model: model}
}

// Registry holds the configured providers by kind.
type Registry struct {
	providers map[domain.ProviderKind]domain.Provider
}

// NewRegistry creates a registry from the given providers. Nil entries are
// skipped.
func NewRegistry(providers ...domain.Provider) *Registry {
	r := &Registry{providers: make(map[domain.ProviderKind]domain.Provider)}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Kind()] = p
		}
	}
	return r
}

// Provider returns the adapter for kind or a not-configured error.
func (r *Registry) Provider(kind domain.ProviderKind) (domain.Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, domain.ErrNotConfigured(fmt.Sprintf("%s provider not configured", kind))
	}
	return p, nil
}

// Kinds lists the registered provider kinds in a stable order.
func (r *Registry) Kinds() []domain.ProviderKind {
	var kinds []domain.ProviderKind
	for _, k := range []domain.ProviderKind{domain.ProviderKindLocal, domain.ProviderKindHosted} {
		if _, ok := r.providers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// RegistryFromConfig builds every enabled provider. Missing providers are
// logged, never fatal.
func RegistryFromConfig(cfg *config.Config, logger *slog.Logger) *Registry {
	var providers []domain.Provider

	if p := local.CreateFromConfig(cfg.Local); p != nil {
		providers = append(providers, p)
		logger.Info("provider configured", slog.String("kind", string(domain.ProviderKindLocal)), slog.String("base_url", cfg.Local.BaseURL))
	} else {
		logger.Warn("local provider disabled")
	}

	if p := hosted.CreateFromConfig(cfg.Hosted); p != nil {
		providers = append(providers, p)
		logger.Info("provider configured", slog.String("kind", string(domain.ProviderKindHosted)))
	} else {
		logger.Warn("hosted provider not configured; set hosted.api_key or OPENAI_API_KEY")
	}

	reg := NewRegistry(providers...)
	if len(reg.Kinds()) == 0 {
		logger.Warn("no providers configured; generation requests will fail")
	}
	return reg
}
