package router

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/zen-systems/routegate/pkg/provider"
)

// limiterSet holds one token bucket per provider/model so concurrent
// requests stay under each backend's rate limit instead of violating it.
// Descriptors with no configured rate are unlimited.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{limiters: make(map[string]*rate.Limiter)}
}

func (s *limiterSet) wait(ctx context.Context, desc provider.Descriptor) error {
	if desc.RatePerSecond <= 0 {
		return nil
	}

	s.mu.Lock()
	limiter, ok := s.limiters[desc.Key()]
	if !ok {
		burst := desc.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(desc.RatePerSecond), burst)
		s.limiters[desc.Key()] = limiter
	}
	s.mu.Unlock()

	return limiter.Wait(ctx)
}
