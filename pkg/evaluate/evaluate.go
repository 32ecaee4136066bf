// Package evaluate defines the quality scoring contract the router depends
// on. The score is a 0-100 integer; anything below a policy's threshold
// keeps the fallback chain moving.
package evaluate

import (
	"context"

	"github.com/zen-systems/routegate/pkg/policy"
)

// Evaluation is the outcome of scoring one generated artifact.
type Evaluation struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// Evaluator scores generated content for a task type.
type Evaluator interface {
	Evaluate(ctx context.Context, taskType policy.TaskType, content string) (Evaluation, error)
}
