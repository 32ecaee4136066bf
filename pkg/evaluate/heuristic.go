package evaluate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zen-systems/routegate/pkg/policy"
)

// HeuristicEvaluator scores content by scanning for hollow output: stub
// markers, placeholder identifiers, and structurally empty diagrams. It is
// the default collaborator when no external evaluator is wired in.
type HeuristicEvaluator struct{}

// NewHeuristicEvaluator creates the default evaluator.
func NewHeuristicEvaluator() *HeuristicEvaluator {
	return &HeuristicEvaluator{}
}

var stubMarkers = []string{
	"todo",
	"fixme",
	"tbd",
	"placeholder",
	"lorem ipsum",
	"<insert",
	"your code here",
	"implementation goes here",
	"fill this in",
}

// placeholderNode matches diagram nodes whose labels carry no information,
// like A[Node1] or B[EntityA].
var placeholderNode = regexp.MustCompile(`\[\s*(?:node|entity|item|thing|step)\s*\d*[a-z]?\s*\]`)

// Evaluate scores content, starting from 100 and deducting per defect.
func (e *HeuristicEvaluator) Evaluate(_ context.Context, taskType policy.TaskType, content string) (Evaluation, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Evaluation{Score: 0, Issues: []string{"empty output"}}, nil
	}

	score := 100
	var issues []string

	if len(trimmed) < 40 {
		score -= 50
		issues = append(issues, "output too short to be a complete artifact")
	}

	lower := strings.ToLower(trimmed)
	for _, marker := range stubMarkers {
		if n := strings.Count(lower, marker); n > 0 {
			score -= 10 * n
			issues = append(issues, fmt.Sprintf("stub marker %q found %d time(s)", marker, n))
		}
	}

	if strings.HasPrefix(string(taskType), "diagram") {
		score, issues = e.scoreDiagram(lower, score, issues)
	}

	if score < 0 {
		score = 0
	}
	return Evaluation{Score: score, Issues: issues}, nil
}

func (e *HeuristicEvaluator) scoreDiagram(lower string, score int, issues []string) (int, []string) {
	if !strings.Contains(lower, "```mermaid") && !strings.Contains(lower, "erdiagram") && !strings.Contains(lower, "graph ") && !strings.Contains(lower, "flowchart") {
		score -= 30
		issues = append(issues, "no recognizable diagram body")
	}
	if matches := placeholderNode.FindAllString(lower, -1); len(matches) > 0 {
		score -= 15 * len(matches)
		issues = append(issues, fmt.Sprintf("%d placeholder node(s) in diagram", len(matches)))
	}
	return score, issues
}
