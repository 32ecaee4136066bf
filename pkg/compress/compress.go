// Package compress shrinks assembled context blobs to fit a provider's
// token budget. Reduction passes run in a fixed order and each pass only
// removes content, so a smaller budget can never produce a longer output.
package compress

import (
	"strings"
)

// CharsPerToken is the approximate character-count heuristic used to
// estimate token counts without a real tokenizer.
const CharsPerToken = 4

// headroom keeps the output below the nominal budget so downstream prompt
// assembly does not itself push over a provider's limit.
const headroom = 0.92

// EstimateTokens returns the approximate token count for a string.
func EstimateTokens(s string) int {
	return (len(s) + CharsPerToken - 1) / CharsPerToken
}

// charBudget converts a token budget to a character allowance with headroom.
func charBudget(budgetTokens int) int {
	return int(float64(budgetTokens*CharsPerToken) * headroom)
}

// Fit reduces blob until its estimated token count is within budgetTokens.
// The taskType hint biases section priorities (diagram tasks keep extracted
// entity sections). Fit never fails: empty input returns empty output, and
// a truncated prefix is the last resort.
func Fit(blob string, budgetTokens int, taskType string) string {
	if blob == "" || budgetTokens <= 0 {
		return ""
	}

	limit := charBudget(budgetTokens)
	if len(blob) <= limit {
		return blob
	}

	doc := parse(blob)
	doc.applyHint(taskType)

	// Pass 1: strip boilerplate and comment lines.
	doc.each(stripBoilerplate)
	if out := doc.render(); len(out) <= limit {
		return out
	}

	// Pass 2: drop near-identical repeated lines across the whole blob.
	doc.dedupe()
	if out := doc.render(); len(out) <= limit {
		return out
	}

	// Pass 3: drop whole sections, lowest priority first. The preamble and
	// must-keep sections are never dropped here.
	doc.dropSections(limit)
	if out := doc.render(); len(out) <= limit {
		return out
	}

	// Pass 4: hard truncate, preserving the preamble and must-keep sections
	// ahead of everything else.
	return doc.hardTruncate(limit)
}

func stripBoilerplate(body string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isBoilerplateLine(trimmed) {
			continue
		}
		if trimmed == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isBoilerplateLine(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "//"):
		return true
	case strings.HasPrefix(trimmed, "<!--") && strings.HasSuffix(trimmed, "-->"):
		return true
	case trimmed == "---" || trimmed == "***" || trimmed == "___":
		return true
	}
	return false
}

// normalizeLine canonicalizes a line for near-duplicate detection.
func normalizeLine(line string) string {
	return strings.Join(strings.Fields(strings.ToLower(line)), " ")
}
