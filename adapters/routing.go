package adapters

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// Routing strategies accepted by the aggregator adapter. An unrecognized
// value falls back to balanced.
const (
	StrategyCostOptimized = "cost_optimized"
	StrategyPerformance   = "performance"
	StrategyBalanced      = "balanced"
	StrategyExplicit      = "explicit"
)

// Modalities reported in a model catalog.
const (
	ModalityText       = "text"
	ModalityMultimodal = "multimodal"
)

// ModelPricing is the per-token unit price pair for a catalog entry.
type ModelPricing struct {
	PromptCostPerToken     float64 `json:"prompt_cost_per_token"`
	CompletionCostPerToken float64 `json:"completion_cost_per_token"`
}

// ModelDescriptor is one candidate model in an aggregator catalog.
type ModelDescriptor struct {
	ID                      string       `json:"id"`
	DisplayName             string       `json:"display_name"`
	ContextLength           int          `json:"context_length"`
	Pricing                 ModelPricing `json:"pricing"`
	SupportsFunctionCalling bool         `json:"supports_function_calling"`
	Modality                string       `json:"modality"`
}

func (d ModelDescriptor) combinedPrice() float64 {
	return d.Pricing.PromptCostPerToken + d.Pricing.CompletionCostPerToken
}

// Constraints filter the candidate catalog before ranking.
type Constraints struct {
	MinContext              int
	VisionRequired          bool
	FunctionCallingRequired bool
}

func (c Constraints) admits(d ModelDescriptor) bool {
	if c.MinContext > 0 && d.ContextLength < c.MinContext {
		return false
	}
	if c.VisionRequired && d.Modality != ModalityMultimodal {
		return false
	}
	if c.FunctionCallingRequired && !d.SupportsFunctionCalling {
		return false
	}
	return true
}

// CatalogFetcher loads the candidate model catalog, typically from the
// aggregator vendor's models endpoint.
type CatalogFetcher func(ctx context.Context) ([]ModelDescriptor, error)

// RoutingEngine picks which model serves a request when several candidates
// could. The catalog is fetched on demand and cached for the engine's
// lifetime; ForceRefresh bypasses the cache.
type RoutingEngine struct {
	fetch  CatalogFetcher
	logger *zap.Logger

	catalog []ModelDescriptor
	loaded  bool
}

// NewRoutingEngine builds an engine over a catalog source.
func NewRoutingEngine(fetch CatalogFetcher, logger *zap.Logger) *RoutingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingEngine{fetch: fetch, logger: logger}
}

// Catalog returns the cached model list, fetching it lazily on first use.
func (e *RoutingEngine) Catalog(ctx context.Context, forceRefresh bool) []ModelDescriptor {
	if e.loaded && !forceRefresh {
		return e.catalog
	}

	models, err := e.fetch(ctx)
	if err != nil {
		e.logger.Warn("model catalog fetch failed", zap.Error(err))
		// Keep whatever we had; selection degrades to the default model.
		if !e.loaded {
			e.catalog = nil
			e.loaded = true
		}
		return e.catalog
	}

	e.catalog = models
	e.loaded = true
	return e.catalog
}

// Invalidate drops the cached catalog so the next use fetches again.
func (e *RoutingEngine) Invalidate() {
	e.catalog = nil
	e.loaded = false
}

// SelectModel filters the catalog by the supplied constraints and ranks the
// survivors by strategy. An empty catalog or empty filtered set falls back to
// defaultModel: a usable result is always produced when a default exists.
func (e *RoutingEngine) SelectModel(ctx context.Context, strategy, defaultModel string, constraints Constraints) string {
	if strategy == StrategyExplicit {
		return defaultModel
	}

	catalog := e.Catalog(ctx, false)

	candidates := make([]ModelDescriptor, 0, len(catalog))
	for _, d := range catalog {
		if constraints.admits(d) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return defaultModel
	}

	switch strategy {
	case StrategyCostOptimized:
		return cheapest(candidates).ID
	case StrategyPerformance:
		// Price stands in for latency: the cheapest/lightest tier wins as a
		// proxy for the fastest responder.
		return cheapest(candidates).ID
	default: // balanced, plus anything unrecognized
		return pickBalanced(candidates).ID
	}
}

func cheapest(candidates []ModelDescriptor) ModelDescriptor {
	best := candidates[0]
	for _, d := range candidates[1:] {
		if d.combinedPrice() < best.combinedPrice() {
			best = d
		}
	}
	return best
}

// pickBalanced avoids both the cheapest and the most expensive candidate,
// preferring multimodal, function-calling-capable mid-range entries.
func pickBalanced(candidates []ModelDescriptor) ModelDescriptor {
	if len(candidates) <= 2 {
		return cheapest(candidates)
	}

	byPrice := make([]ModelDescriptor, len(candidates))
	copy(byPrice, candidates)
	sort.SliceStable(byPrice, func(i, j int) bool {
		return byPrice[i].combinedPrice() < byPrice[j].combinedPrice()
	})

	mid := byPrice[1 : len(byPrice)-1]
	for _, d := range mid {
		if d.Modality == ModalityMultimodal && d.SupportsFunctionCalling {
			return d
		}
	}
	for _, d := range mid {
		if d.SupportsFunctionCalling {
			return d
		}
	}
	return mid[len(mid)/2]
}
