package evaluate

import (
	"context"
	"strings"
	"testing"

	"github.com/zen-systems/routegate/pkg/policy"
)

func TestHeuristicEvaluator(t *testing.T) {
	e := NewHeuristicEvaluator()

	tests := []struct {
		name     string
		taskType policy.TaskType
		content  string
		maxScore int
		minScore int
	}{
		{
			name:     "empty output scores zero",
			taskType: policy.TaskCode,
			content:  "",
			maxScore: 0,
		},
		{
			name:     "clean code scores high",
			taskType: policy.TaskCode,
			content:  "func Sum(values []int) int {\n\ttotal := 0\n\tfor _, v := range values {\n\t\ttotal += v\n\t}\n\treturn total\n}",
			minScore: 90,
		},
		{
			name:     "stub markers deduct",
			taskType: policy.TaskCode,
			content:  "func Sum(values []int) int {\n\t// TODO implement summing properly\n\treturn 0 // placeholder until then\n}",
			maxScore: 85,
		},
		{
			name:     "diagram without body penalized",
			taskType: policy.TaskDiagramERD,
			content:  "Here is a description of the entities involved in the system and how they relate.",
			maxScore: 70,
		},
		{
			name:     "real mermaid diagram scores high",
			taskType: policy.TaskDiagramERD,
			content:  "```mermaid\nerDiagram\n  CUSTOMER ||--o{ INVOICE : places\n  INVOICE ||--|{ LINEITEM : contains\n```",
			minScore: 90,
		},
		{
			name:     "placeholder diagram nodes penalized",
			taskType: policy.TaskDiagramArchitecture,
			content:  "```mermaid\nflowchart TD\n  A[Node1] --> B[Node2]\n  B --> C[Entity3]\n```",
			maxScore: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := e.Evaluate(context.Background(), tt.taskType, tt.content)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if eval.Score < 0 || eval.Score > 100 {
				t.Fatalf("score %d out of range", eval.Score)
			}
			if tt.minScore > 0 && eval.Score < tt.minScore {
				t.Fatalf("score %d below expected minimum %d (issues: %v)", eval.Score, tt.minScore, eval.Issues)
			}
			if tt.minScore == 0 && eval.Score > tt.maxScore {
				t.Fatalf("score %d above expected maximum %d", eval.Score, tt.maxScore)
			}
		})
	}
}

func TestHeuristicEvaluatorReportsIssues(t *testing.T) {
	e := NewHeuristicEvaluator()

	eval, err := e.Evaluate(context.Background(), policy.TaskCode, "TODO: fill this in")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(eval.Issues) == 0 {
		t.Fatalf("expected issues for stub content")
	}
	found := false
	for _, issue := range eval.Issues {
		if strings.Contains(issue, "todo") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected todo marker issue, got %v", eval.Issues)
	}
}
