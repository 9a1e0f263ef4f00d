// Package registry maintains the model-to-provider map and model metadata
// catalog shared by the gateway and the task manager.
//
// Resolution is total: every non-empty model identifier resolves to some
// provider as long as the universal (aggregator) provider is registered,
// because that provider accepts arbitrary pass-through ids.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/ganymede/pkg/providers"
)

// familySubstrings are known model-family markers. A model id containing
// one of these routes to the universal provider when no registered provider
// claims it exactly.
var familySubstrings = []string{"gpt", "claude", "gemini", "llama", "mistral", "grok", "o1", "o3"}

// vendorPrefixes are provider prefixes recognized as vendor-native ids of
// the universal aggregator (e.g. "openai/gpt-4o").
var vendorPrefixes = []string{"openai/", "anthropic/", "google/", "xai/", "x-ai/", "meta-llama/", "mistralai/"}

// Registry holds all provider adapters, routes model identifiers to the
// adapter that serves them, and answers model metadata lookups.
type Registry struct {
	mu sync.RWMutex

	// adapters by provider name, plus registration order for deterministic
	// iteration
	adapters map[string]providers.Provider
	order    []string

	// universal is the name of the pass-through aggregator provider
	universal string

	// modelMap maps exact model ids to provider names
	modelMap map[string]string

	catalog *Catalog
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		adapters: make(map[string]providers.Provider),
		modelMap: make(map[string]string),
		catalog:  NewCatalog(),
	}
}

// Register adds a provider adapter. Models the static catalog attributes to
// this provider become exactly resolvable.
func (r *Registry) Register(p providers.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = p

	for _, info := range staticModels {
		if info.Provider == name {
			r.modelMap[info.ID] = name
		}
	}

	slog.Info("provider registered", "provider", name)
}

// RegisterUniversal adds the universal pass-through provider. Its presence
// makes model resolution total.
func (r *Registry) RegisterUniversal(p providers.Provider) {
	r.Register(p)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.universal = p.Name()

	// Prefixed aggregator ids route here.
	for _, info := range staticModels {
		if strings.Contains(info.ID, "/") {
			r.modelMap[info.ID] = p.Name()
		}
	}
}

// Universal returns the name of the universal provider ("" if none).
func (r *Registry) Universal() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.universal
}

// Provider returns a registered adapter by name.
func (r *Registry) Provider(name string) (providers.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.adapters[name]
	return p, ok
}

// ProviderNames returns all registered provider names in registration order.
func (r *Registry) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ProviderForModel deterministically resolves the provider serving a model.
//
// Resolution order:
//  1. exact registered model id
//  2. recognized vendor prefix, routed to the universal provider
//  3. known family substring, routed to the universal provider
//  4. default to the universal provider
//
// When the universal provider is not registered, the first registered
// adapter claiming the model is used instead; only then can resolution fail.
func (r *Registry) ProviderForModel(model string) (providers.Provider, error) {
	if model == "" {
		return nil, &providers.ValidationError{Field: "model", Message: "model is required"}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Exact match against the model map.
	if name, ok := r.modelMap[model]; ok {
		if p, ok := r.adapters[name]; ok {
			return p, nil
		}
	}

	if r.universal != "" {
		universal := r.adapters[r.universal]

		for _, prefix := range vendorPrefixes {
			if strings.HasPrefix(model, prefix) {
				return universal, nil
			}
		}

		lower := strings.ToLower(model)
		for _, family := range familySubstrings {
			if strings.Contains(lower, family) {
				return universal, nil
			}
		}

		return universal, nil
	}

	// No universal provider: fall back to whichever registered adapter
	// claims the model.
	for _, name := range r.order {
		if r.adapters[name].SupportsModel(model) {
			return r.adapters[name], nil
		}
	}

	return nil, fmt.Errorf("no provider available for model %q", model)
}

// ProviderNameForModel resolves the provider name for a model.
func (r *Registry) ProviderNameForModel(model string) (string, error) {
	p, err := r.ProviderForModel(model)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

// ModelInfo returns metadata for a model. It never reports "not found"
// while the universal provider is registered: unknown ids get synthesized
// defaults (price tier and context length inferred from substring
// heuristics), cached for a bounded TTL.
func (r *Registry) ModelInfo(model string) (*providers.ModelInfo, error) {
	providerName, err := r.ProviderNameForModel(model)
	if err != nil {
		return nil, err
	}
	return r.catalog.Lookup(model, providerName), nil
}

// AvailableModels returns all model ids known to the catalog.
func (r *Registry) AvailableModels() []string {
	return r.catalog.Models()
}

// SearchModels returns catalog model ids containing the query,
// case-insensitively.
func (r *Registry) SearchModels(query string) []string {
	return r.catalog.Search(query)
}

// ReasoningModels returns catalog model ids that support reasoning.
func (r *Registry) ReasoningModels() []string {
	return r.catalog.ReasoningModels()
}

// RefreshCatalog pulls fresh model metadata from the universal provider's
// catalog endpoint. On failure the static defaults remain authoritative.
func (r *Registry) RefreshCatalog(ctx context.Context) error {
	r.mu.RLock()
	universal := r.adapters[r.universal]
	r.mu.RUnlock()

	lister, ok := universal.(ModelLister)
	if !ok {
		return nil
	}

	infos, err := lister.ListModels(ctx)
	if err != nil {
		slog.Warn("model catalog refresh failed, keeping static defaults", "error", err)
		return err
	}

	r.catalog.Merge(infos)

	r.mu.Lock()
	for _, info := range infos {
		if _, exists := r.modelMap[info.ID]; !exists {
			r.modelMap[info.ID] = r.universal
		}
	}
	r.mu.Unlock()

	slog.Info("model catalog refreshed", "models", len(infos))
	return nil
}

// ScheduleRefresh registers a periodic catalog refresh on the given cron
// scheduler. The schedule uses standard cron syntax (e.g. "@every 1h").
func (r *Registry) ScheduleRefresh(c *cron.Cron, schedule string) error {
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = r.RefreshCatalog(ctx)
	})
	return err
}

// Close closes all registered adapters.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.adapters {
		_ = p.Close()
	}
	return nil
}

// ModelLister is implemented by providers that expose a model catalog
// endpoint (the universal aggregator does).
type ModelLister interface {
	ListModels(ctx context.Context) ([]providers.ModelInfo, error)
}
