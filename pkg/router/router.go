// Package router implements the model routing and fallback control loop:
// try providers in policy order, gate each result on quality, compress
// context to fit provider limits, and return the best attempt with full
// provenance.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zen-systems/routegate/pkg/compress"
	"github.com/zen-systems/routegate/pkg/evaluate"
	"github.com/zen-systems/routegate/pkg/policy"
	"github.com/zen-systems/routegate/pkg/provider"
)

// strictBudgetScale is applied when a provider rejects a prompt as too
// large even after the descriptor-budget compression pass.
const strictBudgetScale = 0.75

// TraceStore persists attempt traces for audit and observability.
type TraceStore interface {
	SaveTrace(ctx context.Context, result *Result) error
}

// pinger is implemented by adapters that can cheaply report availability,
// such as the local inference server.
type pinger interface {
	Ping(ctx context.Context) error
}

// Router is the orchestrator. It owns each request's attempt trace during
// evaluation; policies and descriptors are shared read-only snapshots.
type Router struct {
	adapters *provider.Registry
	policies *policy.Store
	eval     evaluate.Evaluator
	store    TraceStore
	pricing  Pricing
	log      *zap.Logger
	locals   *localGate
	limiters *limiterSet
}

// Option configures a Router.
type Option func(*Router)

// WithTraceStore enables trace persistence.
func WithTraceStore(store TraceStore) Option {
	return func(r *Router) { r.store = store }
}

// WithPricing enables per-attempt cost estimates for metered providers.
func WithPricing(pricing Pricing) Option {
	return func(r *Router) { r.pricing = pricing }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Router) { r.log = log }
}

// New creates a router over the given adapters, policy store, and quality
// evaluator.
func New(adapters *provider.Registry, policies *policy.Store, eval evaluate.Evaluator, opts ...Option) *Router {
	r := &Router{
		adapters: adapters,
		policies: policies,
		eval:     eval,
		log:      zap.NewNop(),
		locals:   newLocalGate(),
		limiters: newLimiterSet(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TotalDeadline returns the worst-case duration for a request, so callers
// can drive accurate progress indicators. It is the sum of per-provider
// timeouts across the chain the request would actually walk.
func (r *Router) TotalDeadline(taskType policy.TaskType, forceLocal bool) (time.Duration, error) {
	pol, err := r.policies.Snapshot().Resolve(taskType)
	if err != nil {
		return 0, err
	}
	return chainDeadline(filterChain(pol.Providers, forceLocal), pol.MaxAttempts), nil
}

// Route runs the fallback chain for one request. Provider failures never
// surface as errors: they become typed outcomes in the attempt trace. The
// returned error is reserved for configuration bugs (unknown task type).
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	pol, err := r.policies.Snapshot().Resolve(req.TaskType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{RequestID: uuid.NewString(), TaskType: req.TaskType}

	chain := filterChain(pol.Providers, req.ForceLocal)
	if len(chain) == 0 {
		res.FinalStatus = StatusFailed
		res.FailureReason = "policy has no local provider for a force-local request"
		r.persist(ctx, res, start)
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, chainDeadline(chain, pol.MaxAttempts))
	defer cancel()

	accepted := false
	for _, desc := range chain {
		if len(res.Attempts) >= pol.MaxAttempts || ctx.Err() != nil {
			break
		}

		var release func()
		if desc.IsLocal {
			// Probe first so a down local server costs a quick failed ping
			// instead of a full attempt timeout. Force-local requests have
			// nowhere else to go, so they attempt regardless.
			if !req.ForceLocal && !r.localUp(ctx, desc) {
				continue
			}
			rel, ok := r.locals.acquire(ctx, desc.ModelID, req.ForceLocal)
			if !ok {
				if ctx.Err() != nil {
					break
				}
				r.log.Info("local model busy, redirecting to next provider",
					zap.String("model", desc.ModelID))
				continue
			}
			release = rel
		}

		accepted = r.tryDescriptor(ctx, desc, req, pol, res)
		if release != nil {
			release()
		}
		if accepted {
			break
		}
	}

	r.resolveStatus(ctx, pol, res, accepted)
	r.persist(ctx, res, start)
	return res, nil
}

// localUp reports whether a local backend answers its availability probe.
// Adapters without a probe are assumed up.
func (r *Router) localUp(ctx context.Context, desc provider.Descriptor) bool {
	adapterImpl, ok := r.adapters.Get(desc.ProviderID)
	if !ok {
		return true
	}
	p, ok := adapterImpl.(pinger)
	if !ok {
		return true
	}
	if err := p.Ping(ctx); err != nil {
		r.log.Info("local backend down, redirecting to next provider",
			zap.String("provider", desc.ProviderID),
			zap.String("model", desc.ModelID),
			zap.Error(err))
		return false
	}
	return true
}

// tryDescriptor runs the single attempt for one provider, plus the one
// sanctioned exception: a context_too_large rejection triggers a stricter
// recompression and an immediate retry on the same provider.
func (r *Router) tryDescriptor(ctx context.Context, desc provider.Descriptor, req Request, pol policy.Policy, res *Result) bool {
	att := r.attempt(ctx, desc, req, pol, 1.0)
	res.Attempts = append(res.Attempts, att)

	if att.Outcome == OutcomeProviderError && att.ErrorClass == provider.ClassContextTooLarge &&
		len(res.Attempts) < pol.MaxAttempts && ctx.Err() == nil {
		retry := r.attempt(ctx, desc, req, pol, strictBudgetScale)
		res.Attempts = append(res.Attempts, retry)
		att = retry
	}

	if att.Outcome == OutcomeProviderError && att.ErrorClass == provider.ClassAuth {
		// Misconfiguration, not a transient failure: operators need to see it.
		r.log.Warn("provider rejected credentials",
			zap.String("provider", desc.ProviderID),
			zap.String("model", desc.ModelID),
			zap.String("error", att.Error))
	}

	return att.Outcome == OutcomeAccepted
}

func (r *Router) attempt(ctx context.Context, desc provider.Descriptor, req Request, pol policy.Policy, budgetScale float64) Attempt {
	att := Attempt{Provider: desc}

	blob := req.ContextBlob
	budget := int(float64(desc.MaxContextTokens) * budgetScale)
	if budgetScale < 1.0 || compress.EstimateTokens(blob) > budget {
		blob = compress.Fit(blob, budget, string(req.TaskType))
	}
	att.CompressedContextSize = len(blob)

	adapterImpl, ok := r.adapters.Get(desc.ProviderID)
	if !ok {
		att.Outcome = OutcomeProviderError
		att.ErrorClass = provider.ClassUnavailable
		att.Error = fmt.Sprintf("adapter %s not registered", desc.ProviderID)
		return att
	}

	if err := r.limiters.wait(ctx, desc); err != nil {
		att.Outcome = OutcomeProviderError
		att.ErrorClass = provider.ClassRateLimited
		att.Error = err.Error()
		return att
	}

	prompt := assemblePrompt(req.PromptTemplate, blob)

	callCtx, cancel := context.WithTimeout(ctx, desc.Timeout())
	defer cancel()

	start := time.Now()
	result, err := adapterImpl.Invoke(callCtx, desc.ModelID, prompt)
	att.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		if provider.IsTimeout(err) {
			att.Outcome = OutcomeTimeout
			att.Error = err.Error()
			return att
		}
		att.Outcome = OutcomeProviderError
		att.ErrorClass = provider.ClassOf(err)
		att.Error = err.Error()
		return att
	}

	att.RawOutput = result.Output
	if cost, ok := r.pricing.Estimate(desc, result.Usage); ok {
		att.EstimatedCostUSD = cost
	}

	eval, evalErr := r.eval.Evaluate(ctx, req.TaskType, result.Output)
	if evalErr != nil {
		// Unevaluated output is never accepted; keep it as a degraded
		// candidate of last resort.
		att.Outcome = OutcomeLowQuality
		att.QualityIssues = []string{fmt.Sprintf("evaluator error: %v", evalErr)}
		return att
	}

	att.QualityScore = eval.Score
	att.QualityIssues = eval.Issues
	if eval.Score >= pol.MinQualityScore {
		att.Outcome = OutcomeAccepted
	} else {
		att.Outcome = OutcomeLowQuality
	}
	return att
}

func (r *Router) resolveStatus(ctx context.Context, pol policy.Policy, res *Result, accepted bool) {
	if accepted {
		last := res.Attempts[len(res.Attempts)-1]
		desc := last.Provider
		res.FinalStatus = StatusAccepted
		res.AcceptedOutput = last.RawOutput
		res.AcceptedProvider = &desc
		res.QualityScore = last.QualityScore
		return
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		res.FinalStatus = StatusFailed
		res.FailureReason = "cancelled"
		return
	}

	if best := bestAttempt(res.Attempts); best != nil {
		desc := best.Provider
		res.FinalStatus = StatusDegraded
		res.AcceptedOutput = best.RawOutput
		res.AcceptedProvider = &desc
		res.QualityScore = best.QualityScore
		res.FailureReason = fmt.Sprintf("no provider met quality threshold %d", pol.MinQualityScore)
		return
	}

	res.FinalStatus = StatusFailed
	res.FailureReason = summarizeFailures(res.Attempts)
}

func (r *Router) persist(ctx context.Context, res *Result, start time.Time) {
	res.Elapsed = time.Since(start)
	res.ElapsedMS = res.Elapsed.Milliseconds()

	r.log.Info("request routed",
		zap.String("request_id", res.RequestID),
		zap.String("task_type", string(res.TaskType)),
		zap.String("status", string(res.FinalStatus)),
		zap.Int("attempts", len(res.Attempts)),
		zap.Int64("elapsed_ms", res.ElapsedMS))

	if r.store == nil {
		return
	}
	// Audit writes outlive request cancellation.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.SaveTrace(saveCtx, res); err != nil {
		r.log.Warn("failed to persist attempt trace",
			zap.String("request_id", res.RequestID),
			zap.Error(err))
	}
}

// bestAttempt picks the highest-scored usable output. Ties go to the
// earliest attempt: local is conventionally listed first, so the earliest
// is also the cheapest.
func bestAttempt(attempts []Attempt) *Attempt {
	var best *Attempt
	for i := range attempts {
		att := &attempts[i]
		if att.Outcome != OutcomeLowQuality {
			continue
		}
		if best == nil || att.QualityScore > best.QualityScore {
			best = att
		}
	}
	return best
}

// summarizeFailures renders the per-provider failure classes so a UI can
// explain why the whole chain failed instead of showing an opaque error.
func summarizeFailures(attempts []Attempt) string {
	if len(attempts) == 0 {
		return "no providers attempted"
	}
	parts := make([]string, 0, len(attempts))
	for _, att := range attempts {
		switch att.Outcome {
		case OutcomeTimeout:
			parts = append(parts, fmt.Sprintf("%s: timeout", att.Provider.Key()))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", att.Provider.Key(), att.ErrorClass))
		}
	}
	return "all providers failed: " + strings.Join(parts, ", ")
}

func filterChain(descriptors []provider.Descriptor, forceLocal bool) []provider.Descriptor {
	if !forceLocal {
		return descriptors
	}
	chain := make([]provider.Descriptor, 0, len(descriptors))
	for _, desc := range descriptors {
		if desc.IsLocal {
			chain = append(chain, desc)
		}
	}
	return chain
}

// chainDeadline budgets one timeout per walked provider. When max_attempts
// leaves room for the context_too_large retry it adds one more slot sized to
// the slowest provider, so the retry is never starved by the outer deadline.
func chainDeadline(chain []provider.Descriptor, maxAttempts int) time.Duration {
	var total, slowest time.Duration
	for i, desc := range chain {
		if i >= maxAttempts {
			break
		}
		timeout := desc.Timeout()
		total += timeout
		if timeout > slowest {
			slowest = timeout
		}
	}
	if maxAttempts > len(chain) {
		total += slowest
	}
	return total
}

const contextSlot = "{{context}}"

// assemblePrompt splices the compressed context into the template. A
// template without an explicit slot gets the context appended.
func assemblePrompt(template, blob string) string {
	if strings.Contains(template, contextSlot) {
		return strings.ReplaceAll(template, contextSlot, blob)
	}
	if blob == "" {
		return template
	}
	return template + "\n\n" + blob
}
