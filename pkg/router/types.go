package router

import (
	"time"

	"github.com/zen-systems/routegate/pkg/policy"
	"github.com/zen-systems/routegate/pkg/provider"
)

// Request is one generation request. It is consumed once by the router and
// not persisted beyond the request lifecycle.
type Request struct {
	TaskType       policy.TaskType
	PromptTemplate string
	ContextBlob    string
	ForceLocal     bool
	Constraints    map[string]string
}

// Outcome classifies one provider attempt.
type Outcome string

const (
	OutcomeAccepted      Outcome = "success_accepted"
	OutcomeLowQuality    Outcome = "success_low_quality"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeTimeout       Outcome = "timeout"
)

// Attempt records one try against one provider, with full provenance.
type Attempt struct {
	Provider              provider.Descriptor `json:"provider"`
	CompressedContextSize int                 `json:"compressed_context_size"`
	LatencyMS             int64               `json:"latency_ms"`
	RawOutput             string              `json:"raw_output,omitempty"`
	QualityScore          int                 `json:"quality_score"`
	QualityIssues         []string            `json:"quality_issues,omitempty"`
	Outcome               Outcome             `json:"outcome"`
	ErrorClass            provider.ErrorClass `json:"error_class,omitempty"`
	Error                 string              `json:"error,omitempty"`
	EstimatedCostUSD      float64             `json:"estimated_cost_usd,omitempty"`
}

// Status is the terminal state of a routed request.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Result is the router's answer for one request, immutable after return.
// FinalStatus plus the attempt trace is the sole error channel: callers
// never catch provider-specific errors.
type Result struct {
	RequestID        string               `json:"request_id"`
	TaskType         policy.TaskType      `json:"task_type"`
	AcceptedOutput   string               `json:"accepted_output,omitempty"`
	AcceptedProvider *provider.Descriptor `json:"accepted_provider,omitempty"`
	QualityScore     int                  `json:"quality_score"`
	Attempts         []Attempt            `json:"attempts"`
	FinalStatus      Status               `json:"final_status"`
	FailureReason    string               `json:"failure_reason,omitempty"`
	Elapsed          time.Duration        `json:"-"`
	ElapsedMS        int64                `json:"elapsed_ms"`
}
