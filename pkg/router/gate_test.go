package router

import (
	"context"
	"testing"
	"time"
)

func TestLocalGateNonBlockingAcquire(t *testing.T) {
	g := newLocalGate()
	ctx := context.Background()

	release, ok := g.acquire(ctx, "m1", false)
	if !ok {
		t.Fatalf("free slot should be acquirable")
	}

	if _, ok := g.acquire(ctx, "m1", false); ok {
		t.Fatalf("busy slot acquired without waiting")
	}

	// Other models have independent slots.
	release2, ok := g.acquire(ctx, "m2", false)
	if !ok {
		t.Fatalf("independent model blocked by unrelated slot")
	}
	release2()

	release()
	if release, ok = g.acquire(ctx, "m1", false); !ok {
		t.Fatalf("released slot should be acquirable again")
	}
	release()
}

func TestLocalGateWaitBlocksUntilRelease(t *testing.T) {
	g := newLocalGate()
	ctx := context.Background()

	release, ok := g.acquire(ctx, "m1", false)
	if !ok {
		t.Fatalf("free slot should be acquirable")
	}

	acquired := make(chan bool)
	go func() {
		rel, ok := g.acquire(ctx, "m1", true)
		if ok {
			rel()
		}
		acquired <- ok
	}()

	select {
	case <-acquired:
		t.Fatalf("waiting acquire returned while slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case ok := <-acquired:
		if !ok {
			t.Fatalf("waiting acquire failed after release")
		}
	case <-time.After(time.Second):
		t.Fatalf("waiting acquire did not proceed after release")
	}
}

func TestLocalGateWaitHonorsContext(t *testing.T) {
	g := newLocalGate()

	release, ok := g.acquire(context.Background(), "m1", false)
	if !ok {
		t.Fatalf("free slot should be acquirable")
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := g.acquire(ctx, "m1", true); ok {
		t.Fatalf("acquire should fail once the context expires")
	}
}
