package provider

import (
	"context"
	"fmt"
	"time"
)

// Adapter defines the uniform invocation interface over heterogeneous backends.
type Adapter interface {
	// Invoke sends a prompt to the named model and returns the generated text.
	// The caller bounds the call with a context deadline; adapters must honor it.
	Invoke(ctx context.Context, model string, prompt string) (*Result, error)

	// Name returns the adapter's identifier.
	Name() string
}

// Result wraps an adapter output and optional usage data.
type Result struct {
	Output string
	Usage  *Usage
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CostClass distinguishes free backends from metered ones.
type CostClass string

const (
	CostFree    CostClass = "free"
	CostMetered CostClass = "metered"
)

// Descriptor identifies a callable backend. Descriptors are registered at
// startup and treated as read-only configuration afterwards.
type Descriptor struct {
	ProviderID       string    `yaml:"provider" json:"provider"`
	ModelID          string    `yaml:"model" json:"model"`
	IsLocal          bool      `yaml:"local" json:"local"`
	MaxContextTokens int       `yaml:"max_context_tokens" json:"max_context_tokens"`
	CostClass        CostClass `yaml:"cost_class" json:"cost_class"`
	TimeoutSeconds   int       `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	RatePerSecond    float64   `yaml:"rate_per_second,omitempty" json:"rate_per_second,omitempty"`
	Burst            int       `yaml:"burst,omitempty" json:"burst,omitempty"`
}

const (
	defaultCloudTimeout = 45 * time.Second
	defaultLocalTimeout = 120 * time.Second
)

// Key returns the provider/model identity used in traces and fallback chains.
func (d Descriptor) Key() string {
	return fmt.Sprintf("%s/%s", d.ProviderID, d.ModelID)
}

// Timeout returns the per-attempt deadline for this backend. Local inference
// gets a longer default since cold-start model loads add latency.
func (d Descriptor) Timeout() time.Duration {
	if d.TimeoutSeconds > 0 {
		return time.Duration(d.TimeoutSeconds) * time.Second
	}
	if d.IsLocal {
		return defaultLocalTimeout
	}
	return defaultCloudTimeout
}

// Validate checks descriptor invariants at registration time.
func (d Descriptor) Validate() error {
	if d.ProviderID == "" {
		return fmt.Errorf("descriptor missing provider id")
	}
	if d.ModelID == "" {
		return fmt.Errorf("descriptor %s missing model id", d.ProviderID)
	}
	if d.MaxContextTokens <= 0 {
		return fmt.Errorf("descriptor %s: max_context_tokens must be positive", d.Key())
	}
	switch d.CostClass {
	case CostFree, CostMetered:
	default:
		return fmt.Errorf("descriptor %s: unknown cost class %q", d.Key(), d.CostClass)
	}
	return nil
}

// Registry holds the adapters available to the router, keyed by provider id.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns an adapter by provider id.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered provider ids.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
