package providers

import (
	"math"
	"testing"
)

func TestCalculateCostWithReasoningTokens(t *testing.T) {
	// o3 list pricing: $15/M input, $60/M output, $60/M reasoning.
	info := &ModelInfo{
		ID:                 "o3",
		InputPricePerM:     15,
		OutputPricePerM:    60,
		ReasoningPricePerM: 60,
	}
	usage := &Usage{
		PromptTokens:     1000,
		CompletionTokens: 500,
		ReasoningTokens:  2000,
	}

	got := info.CalculateCost(usage)
	if want := 0.165; math.Abs(got-want) > 1e-9 {
		t.Errorf("CalculateCost = %f, want %f", got, want)
	}
}

func TestCalculateCostPrefersNativeCost(t *testing.T) {
	info := &ModelInfo{InputPricePerM: 15, OutputPricePerM: 60}
	usage := &Usage{PromptTokens: 1000, CompletionTokens: 500, NativeCost: 0.042}

	if got := info.CalculateCost(usage); got != 0.042 {
		t.Errorf("CalculateCost = %f, want vendor-reported 0.042", got)
	}
}

func TestCalculateCostNilUsage(t *testing.T) {
	info := &ModelInfo{InputPricePerM: 15}
	if got := info.CalculateCost(nil); got != 0 {
		t.Errorf("CalculateCost(nil) = %f, want 0", got)
	}
}

func TestStreamChunkDeltas(t *testing.T) {
	chunk := &StreamChunk{
		Choices: []Choice{{Delta: Delta{Content: "hello", Reasoning: "thinking"}}},
	}
	if got := chunk.ContentDelta(); got != "hello" {
		t.Errorf("ContentDelta = %q, want %q", got, "hello")
	}
	if got := chunk.ReasoningDelta(); got != "thinking" {
		t.Errorf("ReasoningDelta = %q, want %q", got, "thinking")
	}

	empty := &StreamChunk{}
	if empty.ContentDelta() != "" || empty.ReasoningDelta() != "" {
		t.Error("chunk without choices should yield empty deltas")
	}
}
