package router

import (
	"context"
	"sync"
)

// localGate serializes invocations per local model. The local inference
// server is VRAM-bound and can typically hold one model at a time, so
// concurrent requests for the same model must not pile onto it.
type localGate struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newLocalGate() *localGate {
	return &localGate{gates: make(map[string]chan struct{})}
}

func (g *localGate) gate(model string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[model]
	if !ok {
		ch = make(chan struct{}, 1)
		g.gates[model] = ch
	}
	return ch
}

// acquire takes the per-model slot. When wait is false a busy slot is
// reported immediately so the caller can redirect to cloud instead of
// queueing; when wait is true (force-local requests have nowhere else to
// go) it blocks until the slot frees or ctx is done.
func (g *localGate) acquire(ctx context.Context, model string, wait bool) (func(), bool) {
	ch := g.gate(model)
	release := func() { <-ch }

	if wait {
		select {
		case ch <- struct{}{}:
			return release, true
		case <-ctx.Done():
			return nil, false
		}
	}

	select {
	case ch <- struct{}{}:
		return release, true
	default:
		return nil, false
	}
}
