// Package providerfactory constructs provider adapters from configuration
// and assembles them into a registry. It is the only package that knows
// every concrete adapter type.
package providerfactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/providers/anthropic"
	"mercator-hq/ganymede/pkg/providers/google"
	"mercator-hq/ganymede/pkg/providers/openai"
	"mercator-hq/ganymede/pkg/providers/openrouter"
	"mercator-hq/ganymede/pkg/providers/xai"
	"mercator-hq/ganymede/pkg/registry"
)

// BuildRegistry constructs adapters for every configured provider that
// has an API key and registers them. OpenRouter registers as the
// universal provider; the others register for their own model families.
// Providers without keys are skipped with a log line rather than an
// error, so a partial configuration still serves the models it can.
func BuildRegistry(cfgs []config.ProviderConfig, logger *slog.Logger) (*registry.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New()
	registered := 0

	for _, pc := range cfgs {
		if pc.APIKey == "" {
			logger.Info("skipping provider without API key", "provider", pc.Name)
			continue
		}

		adapter, err := newAdapter(pc)
		if err != nil {
			return nil, fmt.Errorf("configure provider %q: %w", pc.Name, err)
		}

		if pc.Name == "openrouter" {
			reg.RegisterUniversal(adapter)
		} else {
			reg.Register(adapter)
		}
		registered++
	}

	if registered == 0 {
		return nil, fmt.Errorf("no providers configured with API keys")
	}
	return reg, nil
}

// newAdapter constructs the adapter named by the configuration entry.
func newAdapter(pc config.ProviderConfig) (providers.Provider, error) {
	cfg := providers.ProviderConfig{
		Name:       pc.Name,
		BaseURL:    pc.BaseURL,
		APIKey:     pc.APIKey,
		Timeout:    pc.Timeout,
		MaxRetries: pc.MaxRetries,
	}

	switch pc.Name {
	case "openai":
		return openai.NewClient(cfg)
	case "anthropic":
		return anthropic.NewClient(cfg)
	case "google":
		return google.NewClient(cfg)
	case "xai":
		return xai.NewClient(cfg)
	case "openrouter":
		return openrouter.NewClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", pc.Name)
	}
}
