// Package scoring implements the heuristic response scorer.
//
// The scorer assigns a bounded quality estimate to a single generated
// output given the input that produced it, using only textual features:
// no model calls, no network access, no randomness. Identical arguments
// always yield the identical score, which makes pairwise comparisons
// reproducible and order-independent.
//
// Scores are on a fixed [0, 10] scale. The individual contributions are
// deliberately coarse; the scale only needs to rank two outputs of the
// same input against each other.
package scoring

import "strings"

// MaxScore is the upper bound of the scoring scale.
const MaxScore = 10.0

// relevance tokens shorter than this are ignored; short stopwords like
// "the" match almost any output as a substring and would inflate every
// score equally.
const minRelevantTokenLen = 4

const (
	relevancePerToken = 0.3
	relevanceCap      = 2.0
)

// HeuristicScorer scores generated outputs with fixed textual
// heuristics. The zero value is ready to use.
type HeuristicScorer struct{}

// NewHeuristicScorer returns a ready-to-use scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score computes the quality estimate for output given the original
// input. The result is always within [0, MaxScore].
//
// Whitespace-only output is treated as fully empty and scores 0; the
// raw length of pure padding says nothing about quality.
func (s *HeuristicScorer) Score(output, input string) float64 {
	if strings.TrimSpace(output) == "" {
		return 0
	}

	score := 0.0

	// Non-emptiness.
	score += 1

	// Length band: the two bands are mutually exclusive, only the
	// narrower one applies when both match.
	length := len(output)
	switch {
	case length > 20 && length < 1000:
		score += 2
	case length > 10 && length < 2000:
		score += 1
	}

	score += relevanceBonus(output, input)

	// Structural formatting cues: one flat bonus however many markers.
	// The hyphen marker requires a trailing space so that hyphenated
	// words like "real-time" do not count as list bullets.
	if containsAny(output, "\n", "•", "- ", "1.", "2.", "3.") {
		score += 1
	}

	// Completeness: terminal punctuation or substantial length.
	trimmed := strings.TrimSpace(output)
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") || len(trimmed) > 50 {
		score += 1
	}

	// Enumerated options read as more structured answers. Fires
	// independently of the structural bonus above.
	if containsAny(output, "Option", "1.", "2.", "3.") {
		score += 1
	}

	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// relevanceBonus counts input tokens that reappear in the output, at
// relevancePerToken each, capped at relevanceCap.
func relevanceBonus(output, input string) float64 {
	loweredOutput := strings.ToLower(output)
	relevant := 0
	for _, token := range strings.Fields(strings.ToLower(input)) {
		if len(token) < minRelevantTokenLen {
			continue
		}
		if strings.Contains(loweredOutput, token) {
			relevant++
		}
	}
	bonus := float64(relevant) * relevancePerToken
	if bonus > relevanceCap {
		bonus = relevanceCap
	}
	return bonus
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
