package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/routegate/pkg/policy"
	"github.com/zen-systems/routegate/pkg/provider"
	"github.com/zen-systems/routegate/pkg/router"
)

// RoutingFile is the on-disk routing configuration: the provider descriptor
// registry, the per-task-type policies referencing it, and optional pricing.
type RoutingFile struct {
	Providers []provider.Descriptor `yaml:"providers"`
	Policies  map[string]PolicySpec `yaml:"policies"`
	Pricing   router.Pricing        `yaml:"pricing,omitempty"`
}

// PolicySpec defines one routing policy in the config file. Providers are
// referenced by "provider/model" keys into the descriptor list.
type PolicySpec struct {
	MinQualityScore int      `yaml:"min_quality_score"`
	MaxAttempts     int      `yaml:"max_attempts,omitempty"`
	Providers       []string `yaml:"providers"`
}

// LoadRoutingFile reads routing configuration from a YAML file.
func LoadRoutingFile(path string) (*RoutingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file RoutingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// Build resolves provider references and returns a validated policy table.
func (f *RoutingFile) Build() (*policy.Table, error) {
	descriptors := make(map[string]provider.Descriptor, len(f.Providers))
	for _, desc := range f.Providers {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := descriptors[desc.Key()]; dup {
			return nil, fmt.Errorf("duplicate provider descriptor %s", desc.Key())
		}
		descriptors[desc.Key()] = desc
	}

	policies := make(map[policy.TaskType]policy.Policy, len(f.Policies))
	for name, spec := range f.Policies {
		chain := make([]provider.Descriptor, 0, len(spec.Providers))
		for _, key := range spec.Providers {
			desc, ok := descriptors[key]
			if !ok {
				return nil, fmt.Errorf("policy %s references unknown provider %q", name, key)
			}
			chain = append(chain, desc)
		}

		maxAttempts := spec.MaxAttempts
		if maxAttempts == 0 {
			// Room for the whole chain plus one compression retry.
			maxAttempts = len(chain) + 1
		}

		policies[policy.TaskType(name)] = policy.Policy{
			Providers:       chain,
			MinQualityScore: spec.MinQualityScore,
			MaxAttempts:     maxAttempts,
		}
	}

	return policy.NewTable(policies)
}

// DefaultRoutingFile returns the built-in routing configuration: local
// first everywhere, cloud fallbacks per task type. Thresholds are tunable
// configuration, not derived values.
func DefaultRoutingFile() *RoutingFile {
	return &RoutingFile{
		Providers: []provider.Descriptor{
			{
				ProviderID:       "local",
				ModelID:          "qwen2.5-coder:14b",
				IsLocal:          true,
				MaxContextTokens: 8000,
				CostClass:        provider.CostFree,
				TimeoutSeconds:   120,
			},
			{
				ProviderID:       "google",
				ModelID:          "gemini-2.0-pro",
				MaxContextTokens: 128000,
				CostClass:        provider.CostMetered,
				TimeoutSeconds:   45,
				RatePerSecond:    2,
				Burst:            4,
			},
			{
				ProviderID:       "groq",
				ModelID:          "llama-3.3-70b-versatile",
				MaxContextTokens: 32000,
				CostClass:        provider.CostFree,
				TimeoutSeconds:   30,
				RatePerSecond:    1,
				Burst:            2,
			},
			{
				ProviderID:       "anthropic",
				ModelID:          "claude-sonnet-4-20250514",
				MaxContextTokens: 200000,
				CostClass:        provider.CostMetered,
				TimeoutSeconds:   45,
				RatePerSecond:    2,
				Burst:            4,
			},
			{
				ProviderID:       "openai",
				ModelID:          "gpt-5.2-instant",
				MaxContextTokens: 128000,
				CostClass:        provider.CostMetered,
				TimeoutSeconds:   45,
				RatePerSecond:    2,
				Burst:            4,
			},
		},
		Policies: map[string]PolicySpec{
			string(policy.TaskDiagramERD): {
				MinQualityScore: 80,
				Providers:       []string{"local/qwen2.5-coder:14b", "google/gemini-2.0-pro", "groq/llama-3.3-70b-versatile"},
			},
			string(policy.TaskDiagramArchitecture): {
				MinQualityScore: 80,
				Providers:       []string{"local/qwen2.5-coder:14b", "google/gemini-2.0-pro", "anthropic/claude-sonnet-4-20250514"},
			},
			string(policy.TaskCode): {
				MinQualityScore: 75,
				Providers:       []string{"local/qwen2.5-coder:14b", "anthropic/claude-sonnet-4-20250514", "openai/gpt-5.2-instant"},
			},
			string(policy.TaskDocumentation): {
				MinQualityScore: 70,
				Providers:       []string{"local/qwen2.5-coder:14b", "openai/gpt-5.2-instant", "google/gemini-2.0-pro"},
			},
			string(policy.TaskBacklog): {
				MinQualityScore: 70,
				Providers:       []string{"local/qwen2.5-coder:14b", "groq/llama-3.3-70b-versatile", "openai/gpt-5.2-instant"},
			},
			string(policy.TaskDefault): {
				MinQualityScore: 70,
				Providers:       []string{"local/qwen2.5-coder:14b", "google/gemini-2.0-pro"},
			},
		},
		Pricing: router.Pricing{
			"google": {
				"gemini-2.0-pro": {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
			},
			"anthropic": {
				"claude-sonnet-4-20250514": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
			},
			"openai": {
				"gpt-5.2-instant": {PromptPer1K: 0.001, CompletionPer1K: 0.004},
			},
		},
	}
}
