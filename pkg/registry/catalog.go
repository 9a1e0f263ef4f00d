package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/ganymede/pkg/providers"
)

// synthesizedTTL bounds how long a heuristic ModelInfo stays cached before
// being recomputed (a later catalog refresh may have learned real data).
const synthesizedTTL = time.Hour

// staticModels is the built-in model catalog used until (and whenever) a
// live catalog refresh is unavailable. Prices are USD per million tokens.
var staticModels = []providers.ModelInfo{
	// OpenAI
	{ID: "o3", DisplayName: "OpenAI o3", Provider: "openai", ContextLength: 200000, InputPricePerM: 15, OutputPricePerM: 60, ReasoningPricePerM: 60, SupportsReasoning: true, SupportsStreaming: true},
	{ID: "o3-mini", DisplayName: "OpenAI o3-mini", Provider: "openai", ContextLength: 200000, InputPricePerM: 1.1, OutputPricePerM: 4.4, ReasoningPricePerM: 4.4, SupportsReasoning: true, SupportsStreaming: true},
	{ID: "o1", DisplayName: "OpenAI o1", Provider: "openai", ContextLength: 200000, InputPricePerM: 15, OutputPricePerM: 60, ReasoningPricePerM: 60, SupportsReasoning: true, SupportsStreaming: true},
	{ID: "o1-mini", DisplayName: "OpenAI o1-mini", Provider: "openai", ContextLength: 128000, InputPricePerM: 1.1, OutputPricePerM: 4.4, ReasoningPricePerM: 4.4, SupportsReasoning: true, SupportsStreaming: true},
	{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: "openai", ContextLength: 128000, InputPricePerM: 2.5, OutputPricePerM: 10, SupportsStreaming: true},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: "openai", ContextLength: 128000, InputPricePerM: 0.15, OutputPricePerM: 0.6, SupportsStreaming: true},
	{ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: "openai", ContextLength: 128000, InputPricePerM: 10, OutputPricePerM: 30, SupportsStreaming: true},

	// Anthropic
	{ID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet", Provider: "anthropic", ContextLength: 200000, InputPricePerM: 3, OutputPricePerM: 15, SupportsStreaming: true},
	{ID: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku", Provider: "anthropic", ContextLength: 200000, InputPricePerM: 0.8, OutputPricePerM: 4, SupportsStreaming: true},
	{ID: "claude-3-opus-20240229", DisplayName: "Claude 3 Opus", Provider: "anthropic", ContextLength: 200000, InputPricePerM: 15, OutputPricePerM: 75, SupportsStreaming: true},

	// Google
	{ID: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Provider: "google", ContextLength: 1000000, InputPricePerM: 1.25, OutputPricePerM: 5, SupportsStreaming: true},
	{ID: "gemini-1.5-flash", DisplayName: "Gemini 1.5 Flash", Provider: "google", ContextLength: 1000000, InputPricePerM: 0.075, OutputPricePerM: 0.3, SupportsStreaming: true},

	// XAI
	{ID: "grok-beta", DisplayName: "Grok Beta", Provider: "xai", ContextLength: 131072, InputPricePerM: 5, OutputPricePerM: 15, ReasoningPricePerM: 15, SupportsReasoning: true, SupportsStreaming: true},
	{ID: "grok-2-1212", DisplayName: "Grok 2", Provider: "xai", ContextLength: 131072, InputPricePerM: 2, OutputPricePerM: 10, ReasoningPricePerM: 10, SupportsReasoning: true, SupportsStreaming: true},

	// Aggregator-prefixed ids served by the universal provider
	{ID: "openai/o3", DisplayName: "OpenAI o3 (OpenRouter)", Provider: "openrouter", ContextLength: 200000, InputPricePerM: 15, OutputPricePerM: 60, ReasoningPricePerM: 60, SupportsReasoning: true, SupportsStreaming: true},
	{ID: "openai/gpt-4o", DisplayName: "GPT-4o (OpenRouter)", Provider: "openrouter", ContextLength: 128000, InputPricePerM: 2.5, OutputPricePerM: 10, SupportsStreaming: true},
	{ID: "anthropic/claude-3.5-sonnet", DisplayName: "Claude 3.5 Sonnet (OpenRouter)", Provider: "openrouter", ContextLength: 200000, InputPricePerM: 3, OutputPricePerM: 15, SupportsStreaming: true},
	{ID: "google/gemini-pro-1.5", DisplayName: "Gemini 1.5 Pro (OpenRouter)", Provider: "openrouter", ContextLength: 1000000, InputPricePerM: 1.25, OutputPricePerM: 5, SupportsStreaming: true},
	{ID: "xai/grok-beta", DisplayName: "Grok Beta (OpenRouter)", Provider: "openrouter", ContextLength: 131072, InputPricePerM: 5, OutputPricePerM: 15, ReasoningPricePerM: 15, SupportsReasoning: true, SupportsStreaming: true},
	{ID: "meta-llama/llama-3.2-90b-vision-instruct", DisplayName: "Llama 3.2 90B", Provider: "openrouter", ContextLength: 131072, InputPricePerM: 0.9, OutputPricePerM: 0.9, SupportsStreaming: true},
	{ID: "mistralai/mistral-large", DisplayName: "Mistral Large", Provider: "openrouter", ContextLength: 128000, InputPricePerM: 2, OutputPricePerM: 6, SupportsStreaming: true},
}

// Catalog is the read-mostly model metadata cache. Static entries are
// authoritative until a live refresh merges vendor catalog data over them;
// lookups for unknown ids synthesize sane defaults with a bounded TTL.
type Catalog struct {
	mu sync.RWMutex

	// known holds static plus refreshed entries, keyed by model id
	known map[string]providers.ModelInfo

	// synthesized caches heuristic entries for unknown ids
	synthesized map[string]synthesizedEntry
}

type synthesizedEntry struct {
	info    providers.ModelInfo
	expires time.Time
}

// NewCatalog creates a catalog seeded with the static model table.
func NewCatalog() *Catalog {
	c := &Catalog{
		known:       make(map[string]providers.ModelInfo, len(staticModels)),
		synthesized: make(map[string]synthesizedEntry),
	}
	for _, info := range staticModels {
		c.known[info.ID] = info
	}
	return c
}

// Lookup returns metadata for a model, synthesizing defaults for unknown
// ids. It never returns nil.
func (c *Catalog) Lookup(model, providerName string) *providers.ModelInfo {
	c.mu.RLock()
	if info, ok := c.known[model]; ok {
		c.mu.RUnlock()
		return &info
	}
	if entry, ok := c.synthesized[model]; ok && time.Now().Before(entry.expires) {
		c.mu.RUnlock()
		return &entry.info
	}
	c.mu.RUnlock()

	info := synthesize(model, providerName)

	c.mu.Lock()
	c.synthesized[model] = synthesizedEntry{info: info, expires: time.Now().Add(synthesizedTTL)}
	c.mu.Unlock()

	return &info
}

// Merge folds refreshed vendor catalog entries over the known table.
func (c *Catalog) Merge(infos []providers.ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, info := range infos {
		c.known[info.ID] = info
		delete(c.synthesized, info.ID)
	}
}

// Models returns all known model ids, sorted.
func (c *Catalog) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.known))
	for id := range c.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Search returns known model ids containing the query, case-insensitively.
func (c *Catalog) Search(query string) []string {
	lower := strings.ToLower(query)
	var matches []string
	for _, id := range c.Models() {
		if strings.Contains(strings.ToLower(id), lower) {
			matches = append(matches, id)
		}
	}
	return matches
}

// ReasoningModels returns known model ids that support reasoning.
func (c *Catalog) ReasoningModels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for id, info := range c.known {
		if info.SupportsReasoning {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// synthesize infers model metadata from substring heuristics: reasoning
// families get long contexts and premium pricing, "mini"/"flash"/"haiku"
// variants get budget pricing, everything else lands mid-tier.
func synthesize(model, providerName string) providers.ModelInfo {
	lower := strings.ToLower(model)

	info := providers.ModelInfo{
		ID:                model,
		DisplayName:       model,
		Provider:          providerName,
		ContextLength:     8192,
		InputPricePerM:    2.5,
		OutputPricePerM:   10,
		SupportsStreaming: true,
	}

	reasoning := strings.Contains(lower, "o1") || strings.Contains(lower, "o3") || strings.Contains(lower, "grok")
	if reasoning {
		info.SupportsReasoning = true
		info.ContextLength = 128000
		info.InputPricePerM = 15
		info.OutputPricePerM = 60
		info.ReasoningPricePerM = 60
	}

	switch {
	case strings.Contains(lower, "mini"), strings.Contains(lower, "flash"), strings.Contains(lower, "haiku"):
		info.InputPricePerM = 0.15
		info.OutputPricePerM = 0.6
		if info.SupportsReasoning {
			info.ReasoningPricePerM = 0.6
		}
	case strings.Contains(lower, "opus"):
		info.InputPricePerM = 15
		info.OutputPricePerM = 75
	}

	if strings.Contains(lower, "claude") || strings.Contains(lower, "sonnet") || strings.Contains(lower, "opus") {
		info.ContextLength = 200000
	}
	if strings.Contains(lower, "gemini") {
		info.ContextLength = 1000000
	}

	return info
}
