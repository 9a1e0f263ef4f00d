package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mercator-hq/ganymede/pkg/providers"
)

// stubProvider claims models by prefix, like the real vendor adapters.
type stubProvider struct {
	name   string
	prefix string
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Close() error { return nil }

func (p *stubProvider) SupportsModel(model string) bool {
	if p.prefix == "" {
		return model != ""
	}
	return strings.HasPrefix(model, p.prefix)
}

func (p *stubProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	return providers.NewBufferedStream(nil), nil
}

// stubLister is a universal provider with a live catalog endpoint.
type stubLister struct {
	stubProvider
	models []providers.ModelInfo
	err    error
}

func (p *stubLister) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	return p.models, p.err
}

func newTestRegistry() *Registry {
	r := New()
	r.Register(&stubProvider{name: "openai", prefix: "gpt"})
	r.Register(&stubProvider{name: "anthropic", prefix: "claude"})
	r.RegisterUniversal(&stubProvider{name: "openrouter"})
	return r
}

func TestResolutionExactMatch(t *testing.T) {
	r := newTestRegistry()

	cases := map[string]string{
		"gpt-4o":                     "openai",
		"claude-3-5-sonnet-20241022": "anthropic",
	}
	for model, want := range cases {
		got, err := r.ProviderNameForModel(model)
		if err != nil {
			t.Fatalf("ProviderNameForModel(%q) failed: %v", model, err)
		}
		if got != want {
			t.Errorf("ProviderNameForModel(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestResolutionIsTotalWithUniversal(t *testing.T) {
	r := newTestRegistry()

	// Vendor-prefixed, family-substring, and completely unknown ids all
	// land on the universal provider.
	for _, model := range []string{
		"meta-llama/llama-3.2-90b-vision-instruct",
		"mistral-large-latest",
		"some-brand-new-model",
	} {
		got, err := r.ProviderNameForModel(model)
		if err != nil {
			t.Fatalf("ProviderNameForModel(%q) failed: %v", model, err)
		}
		if got != "openrouter" {
			t.Errorf("ProviderNameForModel(%q) = %q, want %q", model, got, "openrouter")
		}
	}
}

func TestResolutionRejectsEmptyModel(t *testing.T) {
	r := newTestRegistry()

	_, err := r.ProviderForModel("")
	var ve *providers.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestResolutionWithoutUniversal(t *testing.T) {
	r := New()
	r.Register(&stubProvider{name: "openai", prefix: "gpt"})

	if got, err := r.ProviderNameForModel("gpt-4o"); err != nil || got != "openai" {
		t.Errorf("ProviderNameForModel(gpt-4o) = %q, %v; want openai, nil", got, err)
	}
	if _, err := r.ProviderNameForModel("claude-3-opus-20240229"); err == nil {
		t.Error("expected resolution to fail for an unclaimed model with no universal provider")
	}
}

func TestModelInfoSynthesizesUnknownIds(t *testing.T) {
	r := newTestRegistry()

	info, err := r.ModelInfo("never-heard-of-it")
	if err != nil {
		t.Fatalf("ModelInfo failed: %v", err)
	}
	if info.ID != "never-heard-of-it" {
		t.Errorf("info.ID = %q, want the requested id", info.ID)
	}
	if info.InputPricePerM <= 0 || info.ContextLength <= 0 {
		t.Errorf("synthesized info has no usable defaults: %+v", info)
	}
}

func TestModelInfoKnownPricing(t *testing.T) {
	r := newTestRegistry()

	info, err := r.ModelInfo("o3")
	if err != nil {
		t.Fatalf("ModelInfo failed: %v", err)
	}
	if info.InputPricePerM != 15 || info.OutputPricePerM != 60 || info.ReasoningPricePerM != 60 {
		t.Errorf("o3 pricing = %v/%v/%v, want 15/60/60",
			info.InputPricePerM, info.OutputPricePerM, info.ReasoningPricePerM)
	}
	if !info.SupportsReasoning {
		t.Error("o3 should support reasoning")
	}
}

func TestSearchAndReasoningModels(t *testing.T) {
	r := newTestRegistry()

	found := false
	for _, id := range r.SearchModels("claude") {
		if id == "claude-3-5-sonnet-20241022" {
			found = true
		}
	}
	if !found {
		t.Error("search for claude did not include claude-3-5-sonnet-20241022")
	}

	for _, id := range r.ReasoningModels() {
		info, err := r.ModelInfo(id)
		if err != nil {
			t.Fatalf("ModelInfo(%q) failed: %v", id, err)
		}
		if !info.SupportsReasoning {
			t.Errorf("%q listed as a reasoning model but metadata disagrees", id)
		}
	}
}

func TestRefreshCatalogMergesAndMaps(t *testing.T) {
	lister := &stubLister{
		stubProvider: stubProvider{name: "openrouter"},
		models: []providers.ModelInfo{
			{ID: "vendor/new-model", Provider: "openrouter", ContextLength: 32000, InputPricePerM: 1, OutputPricePerM: 2, SupportsStreaming: true},
		},
	}

	r := New()
	r.RegisterUniversal(lister)

	if err := r.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("RefreshCatalog failed: %v", err)
	}

	info, err := r.ModelInfo("vendor/new-model")
	if err != nil {
		t.Fatalf("ModelInfo after refresh failed: %v", err)
	}
	if info.ContextLength != 32000 {
		t.Errorf("refreshed context length = %d, want 32000", info.ContextLength)
	}
}

func TestRefreshCatalogKeepsStaticsOnFailure(t *testing.T) {
	lister := &stubLister{
		stubProvider: stubProvider{name: "openrouter"},
		err:          errors.New("upstream down"),
	}

	r := New()
	r.RegisterUniversal(lister)

	if err := r.RefreshCatalog(context.Background()); err == nil {
		t.Fatal("expected refresh failure to be reported")
	}

	// Static defaults still answer.
	info, err := r.ModelInfo("gpt-4o")
	if err != nil {
		t.Fatalf("ModelInfo after failed refresh: %v", err)
	}
	if info.InputPricePerM != 2.5 {
		t.Errorf("gpt-4o input price = %v, want static default 2.5", info.InputPricePerM)
	}
}
