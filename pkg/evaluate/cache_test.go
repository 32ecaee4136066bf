package evaluate

import (
	"context"
	"testing"

	"github.com/zen-systems/routegate/pkg/policy"
)

type countingEvaluator struct {
	calls int
	score int
}

func (e *countingEvaluator) Evaluate(_ context.Context, _ policy.TaskType, _ string) (Evaluation, error) {
	e.calls++
	return Evaluation{Score: e.score}, nil
}

func TestCachedEvaluatorMemoizes(t *testing.T) {
	inner := &countingEvaluator{score: 85}
	cached, err := NewCachedEvaluator(inner, 16)
	if err != nil {
		t.Fatalf("new cached evaluator: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		eval, err := cached.Evaluate(ctx, policy.TaskCode, "same content")
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if eval.Score != 85 {
			t.Fatalf("unexpected score %d", eval.Score)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected single inner call, got %d", inner.calls)
	}

	// Different task type means a different key even for identical content.
	if _, err := cached.Evaluate(ctx, policy.TaskBacklog, "same content"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected second inner call for new task type, got %d", inner.calls)
	}
}
