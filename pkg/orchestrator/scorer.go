package orchestrator

import "strings"

// Scorer estimates the quality of generated content in [0, 1] so experiment
// events carry a comparable target metric.
type Scorer interface {
	Score(prompt, content string) float64
}

// HeuristicScorer is the default scorer: length band plus prompt keyword
// coverage. Deterministic so repeated runs produce comparable metrics.
type HeuristicScorer struct{}

const (
	scoreBase      = 0.5
	minUsefulWords = 120
	maxUsefulWords = 600
)

// Score implements Scorer.
func (HeuristicScorer) Score(prompt, content string) float64 {
	words := strings.Fields(content)
	score := scoreBase

	if n := len(words); n >= minUsefulWords && n <= maxUsefulWords {
		score += 0.25
	} else if n >= minUsefulWords/2 {
		score += 0.1
	}

	promptTerms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		if len(w) > 4 {
			promptTerms[w] = true
		}
	}
	if len(promptTerms) > 0 {
		covered := 0
		seen := make(map[string]bool)
		for _, w := range words {
			lw := strings.ToLower(w)
			if promptTerms[lw] && !seen[lw] {
				seen[lw] = true
				covered++
			}
		}
		score += 0.25 * float64(covered) / float64(len(promptTerms))
	}

	if score > 1 {
		score = 1
	}
	return score
}
