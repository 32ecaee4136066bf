package router

import (
	"context"
	"testing"
	"time"

	"github.com/zen-systems/routegate/pkg/policy"
	"github.com/zen-systems/routegate/pkg/provider"
)

func TestLimiterSetDelaysBeyondBurst(t *testing.T) {
	s := newLimiterSet()
	desc := testDesc("google", "gemini-2.0-pro", false, 128000)
	desc.RatePerSecond = 20
	desc.Burst = 1

	ctx := context.Background()
	if err := s.wait(ctx, desc); err != nil {
		t.Fatalf("first acquisition should use the burst token: %v", err)
	}

	start := time.Now()
	if err := s.wait(ctx, desc); err != nil {
		t.Fatalf("second acquisition: %v", err)
	}
	// 20/s means the next token arrives after 50ms.
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("second acquisition not rate limited: took %s", elapsed)
	}
}

func TestLimiterSetUnlimitedWithoutRate(t *testing.T) {
	s := newLimiterSet()
	desc := testDesc("local", "m1", true, 8000)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := s.wait(ctx, desc); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("unconfigured descriptor should not be limited: took %s", elapsed)
	}
}

func TestLimiterSetFailsFastOnShortDeadline(t *testing.T) {
	s := newLimiterSet()
	desc := testDesc("google", "gemini-2.0-pro", false, 128000)
	desc.RatePerSecond = 0.001
	desc.Burst = 1

	if err := s.wait(context.Background(), desc); err != nil {
		t.Fatalf("burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.wait(ctx, desc)
	if err == nil {
		t.Fatalf("expected error when the deadline cannot cover the wait")
	}
	// The limiter must report the impossible wait up front, not sleep it out.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait did not fail fast: took %s", elapsed)
	}
}

func TestRouteRecordsRateLimitedAttempt(t *testing.T) {
	google := provider.NewMockAdapter("google").Enqueue(
		provider.MockReply{Output: "first answer"},
		provider.MockReply{Output: "second answer"},
	)

	desc := testDesc("google", "gemini-2.0-pro", false, 128000)
	desc.RatePerSecond = 0.001
	desc.Burst = 1

	r := newTestRouter(t, []provider.Adapter{google}, map[policy.TaskType]policy.Policy{
		policy.TaskCode: {
			Providers:       []provider.Descriptor{desc},
			MinQualityScore: 75,
			MaxAttempts:     2,
		},
	}, scoreByOutput{"first answer": 90, "second answer": 90})

	first, err := r.Route(context.Background(), Request{TaskType: policy.TaskCode, PromptTemplate: "code"})
	if err != nil {
		t.Fatalf("first route: %v", err)
	}
	if first.FinalStatus != StatusAccepted {
		t.Fatalf("first request should pass within burst, got %s", first.FinalStatus)
	}

	// The bucket is empty and refills at 0.001/s; the chain deadline cannot
	// cover the wait, so the attempt must fail as rate_limited, not hang.
	second, err := r.Route(context.Background(), Request{TaskType: policy.TaskCode, PromptTemplate: "code"})
	if err != nil {
		t.Fatalf("second route: %v", err)
	}

	if second.FinalStatus != StatusFailed {
		t.Fatalf("expected failed, got %s", second.FinalStatus)
	}
	if len(second.Attempts) != 1 {
		t.Fatalf("expected one recorded attempt, got %d", len(second.Attempts))
	}
	att := second.Attempts[0]
	if att.Outcome != OutcomeProviderError || att.ErrorClass != provider.ClassRateLimited {
		t.Fatalf("attempt outcome %s class %s, want provider_error/rate_limited", att.Outcome, att.ErrorClass)
	}
	if calls := google.Calls(); len(calls) != 1 {
		t.Fatalf("rate-limited attempt must not reach the adapter, got %d calls", len(calls))
	}
}
