package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func descriptor(id string, prompt, completion float64, ctxLen int, tools bool, modality string) ModelDescriptor {
	return ModelDescriptor{
		ID:            id,
		DisplayName:   id,
		ContextLength: ctxLen,
		Pricing: ModelPricing{
			PromptCostPerToken:     prompt,
			CompletionCostPerToken: completion,
		},
		SupportsFunctionCalling: tools,
		Modality:                modality,
	}
}

func staticCatalog(models ...ModelDescriptor) CatalogFetcher {
	return func(ctx context.Context) ([]ModelDescriptor, error) {
		return models, nil
	}
}

func TestSelectModelCostOptimized(t *testing.T) {
	engine := NewRoutingEngine(staticCatalog(
		descriptor("pricey", 0.01, 0.03, 128000, true, ModalityMultimodal),
		descriptor("cheap", 0.0001, 0.0002, 16000, false, ModalityText),
		descriptor("middle", 0.001, 0.002, 32000, true, ModalityText),
	), nil)

	got := engine.SelectModel(context.Background(), StrategyCostOptimized, "default", Constraints{})
	assert.Equal(t, "cheap", got)

	got = engine.SelectModel(context.Background(), StrategyPerformance, "default", Constraints{})
	assert.Equal(t, "cheap", got)
}

func TestSelectModelConstraintsFilter(t *testing.T) {
	engine := NewRoutingEngine(staticCatalog(
		descriptor("cheap-text", 0.0001, 0.0002, 16000, false, ModalityText),
		descriptor("vision", 0.005, 0.01, 128000, true, ModalityMultimodal),
	), nil)

	got := engine.SelectModel(context.Background(), StrategyCostOptimized, "default",
		Constraints{VisionRequired: true})
	assert.Equal(t, "vision", got)

	got = engine.SelectModel(context.Background(), StrategyCostOptimized, "default",
		Constraints{MinContext: 64000})
	assert.Equal(t, "vision", got)

	// Nothing admits: fall back to the default.
	got = engine.SelectModel(context.Background(), StrategyCostOptimized, "default",
		Constraints{MinContext: 1_000_000})
	assert.Equal(t, "default", got)
}

func TestSelectModelExplicit(t *testing.T) {
	fetchCalled := false
	engine := NewRoutingEngine(func(ctx context.Context) ([]ModelDescriptor, error) {
		fetchCalled = true
		return nil, nil
	}, nil)

	got := engine.SelectModel(context.Background(), StrategyExplicit, "chosen", Constraints{})
	assert.Equal(t, "chosen", got)
	assert.False(t, fetchCalled, "explicit strategy must not touch the catalog")
}

func TestSelectModelEmptyCatalog(t *testing.T) {
	engine := NewRoutingEngine(staticCatalog(), nil)
	got := engine.SelectModel(context.Background(), StrategyBalanced, "default", Constraints{})
	assert.Equal(t, "default", got)
}

func TestSelectModelFetchFailureDegrades(t *testing.T) {
	engine := NewRoutingEngine(func(ctx context.Context) ([]ModelDescriptor, error) {
		return nil, errors.New("models endpoint down")
	}, nil)

	got := engine.SelectModel(context.Background(), StrategyCostOptimized, "default", Constraints{})
	assert.Equal(t, "default", got)
}

func TestSelectModelBalancedPrefersMidTier(t *testing.T) {
	engine := NewRoutingEngine(staticCatalog(
		descriptor("cheapest", 0.0001, 0.0001, 8000, false, ModalityText),
		descriptor("mid-plain", 0.001, 0.001, 32000, false, ModalityText),
		descriptor("mid-capable", 0.002, 0.002, 64000, true, ModalityMultimodal),
		descriptor("priciest", 0.01, 0.03, 200000, true, ModalityMultimodal),
	), nil)

	got := engine.SelectModel(context.Background(), StrategyBalanced, "default", Constraints{})
	assert.Equal(t, "mid-capable", got)
}

func TestSelectModelBalancedTinyCatalog(t *testing.T) {
	engine := NewRoutingEngine(staticCatalog(
		descriptor("a", 0.002, 0.002, 32000, false, ModalityText),
		descriptor("b", 0.001, 0.001, 32000, false, ModalityText),
	), nil)

	got := engine.SelectModel(context.Background(), StrategyBalanced, "default", Constraints{})
	assert.Equal(t, "b", got)
}

func TestSelectModelUnknownStrategyActsBalanced(t *testing.T) {
	engine := NewRoutingEngine(staticCatalog(
		descriptor("cheapest", 0.0001, 0.0001, 8000, false, ModalityText),
		descriptor("mid", 0.001, 0.001, 32000, true, ModalityText),
		descriptor("priciest", 0.01, 0.03, 200000, true, ModalityMultimodal),
	), nil)

	got := engine.SelectModel(context.Background(), "does-not-exist", "default", Constraints{})
	assert.Equal(t, "mid", got)
}

func TestCatalogCaching(t *testing.T) {
	fetches := 0
	engine := NewRoutingEngine(func(ctx context.Context) ([]ModelDescriptor, error) {
		fetches++
		return []ModelDescriptor{descriptor("m", 0.001, 0.001, 8000, false, ModalityText)}, nil
	}, nil)

	ctx := context.Background()
	engine.Catalog(ctx, false)
	engine.Catalog(ctx, false)
	assert.Equal(t, 1, fetches)

	engine.Catalog(ctx, true)
	assert.Equal(t, 2, fetches)

	engine.Invalidate()
	engine.Catalog(ctx, false)
	assert.Equal(t, 3, fetches)
}
