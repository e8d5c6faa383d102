package validator

import "strings"

var validIndicators = []string{
	"bug", "error", "broken", "not working", "issue", "problem", "failed", "crash",
	"slow", "delay", "unavailable", "down", "incorrect", "wrong", "missing", "lost",
	"billing", "charge", "overcharged", "unauthorized", "poor service", "rude", "unhelpful",
}

var questionPatterns = []string{
	"how to", "how do i", "what is", "where is", "when does",
	"tutorial", "guide", "help me", "show me", "explain",
}

// PatternSignal is the lexical validity estimate.
type PatternSignal struct {
	IsValid          bool
	Confidence       float64
	Score            float64
	ValidIndicators  []string
	QuestionPatterns []string
}

// Pattern scores text as validHits - 0.5*questionHits. The text is valid when
// the score is positive; confidence is score/3 clamped to [0,1].
func Pattern(text string) PatternSignal {
	lower := strings.ToLower(text)
	s := PatternSignal{
		ValidIndicators:  hits(lower, validIndicators),
		QuestionPatterns: hits(lower, questionPatterns),
	}
	s.Score = float64(len(s.ValidIndicators)) - 0.5*float64(len(s.QuestionPatterns))
	s.IsValid = s.Score > 0
	s.Confidence = clamp01(s.Score / 3)
	return s
}

func hits(lower string, words []string) []string {
	var out []string
	for _, w := range words {
		if strings.Contains(lower, w) {
			out = append(out, w)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
