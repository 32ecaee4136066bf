package router

import "github.com/zen-systems/routegate/pkg/provider"

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// Pricing maps provider -> model -> pricing. Free providers simply have no
// entry; local attempts never accrue cost.
type Pricing map[string]map[string]ModelPricing

// Estimate computes the USD cost of one metered invocation from its token
// usage. The second return reports whether pricing was configured.
func (p Pricing) Estimate(desc provider.Descriptor, usage *provider.Usage) (float64, bool) {
	if p == nil || usage == nil || desc.CostClass != provider.CostMetered {
		return 0, false
	}
	models, ok := p[desc.ProviderID]
	if !ok {
		return 0, false
	}
	entry, ok := models[desc.ModelID]
	if !ok {
		entry, ok = models["default"]
		if !ok {
			return 0, false
		}
	}

	promptCost := (float64(usage.PromptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * entry.CompletionPer1K
	return promptCost + completionCost, true
}
