package evaluate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zen-systems/routegate/pkg/policy"
)

// CachedEvaluator memoizes scores by content hash. Identical outputs from
// different providers are common on retries and cost nothing to re-score
// here, but an external evaluator call may be expensive.
type CachedEvaluator struct {
	inner Evaluator
	cache *lru.Cache[string, Evaluation]
}

// NewCachedEvaluator wraps an evaluator with an LRU score cache.
func NewCachedEvaluator(inner Evaluator, size int) (*CachedEvaluator, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, Evaluation](size)
	if err != nil {
		return nil, err
	}
	return &CachedEvaluator{inner: inner, cache: cache}, nil
}

// Evaluate returns a cached score when available. Errors are not cached.
func (e *CachedEvaluator) Evaluate(ctx context.Context, taskType policy.TaskType, content string) (Evaluation, error) {
	key := cacheKey(taskType, content)
	if eval, ok := e.cache.Get(key); ok {
		return eval, nil
	}

	eval, err := e.inner.Evaluate(ctx, taskType, content)
	if err != nil {
		return Evaluation{}, err
	}
	e.cache.Add(key, eval)
	return eval, nil
}

func cacheKey(taskType policy.TaskType, content string) string {
	h := sha256.New()
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
