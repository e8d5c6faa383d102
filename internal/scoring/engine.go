// Package scoring ranks retrieved knowledge by a weighted combination of
// semantic similarity, keyword overlap, content quality and recency.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/vecmath"
)

// Weights are the per-factor multipliers of the combined score.
type Weights struct {
	Semantic float64
	Keyword  float64
	Quality  float64
	Recency  float64
}

// DefaultWeights favors semantic similarity.
var DefaultWeights = Weights{Semantic: 0.5, Keyword: 0.2, Quality: 0.15, Recency: 0.15}

// DefaultThreshold is the minimum combined score a document needs to be kept.
const DefaultThreshold = 0.4

// Outcome describes how a ranking was produced.
type Outcome struct {
	Candidates int
	Kept       int
	Excluded   int  // documents dropped because their score could not be computed
	Fallback   bool // every document failed and raw similarity was used
}

// Engine ranks documents for a query.
type Engine struct {
	weights   Weights
	threshold float64
	now       func() time.Time
}

// New builds an engine. Weights are normalized to sum to 1 and semantic must
// be the largest of them.
func New(w Weights, threshold float64) (*Engine, error) {
	if w.Semantic < 0 || w.Keyword < 0 || w.Quality < 0 || w.Recency < 0 {
		return nil, fmt.Errorf("weights must not be negative")
	}
	if w.Semantic <= w.Keyword || w.Semantic <= w.Quality || w.Semantic <= w.Recency {
		return nil, fmt.Errorf("semantic weight must be the largest")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be within [0,1], got %v", threshold)
	}
	sum := w.Semantic + w.Keyword + w.Quality + w.Recency
	return &Engine{
		weights: Weights{
			Semantic: w.Semantic / sum,
			Keyword:  w.Keyword / sum,
			Quality:  w.Quality / sum,
			Recency:  w.Recency / sum,
		},
		threshold: threshold,
		now:       time.Now,
	}, nil
}

// Threshold returns the minimum kept score.
func (e *Engine) Threshold() float64 { return e.threshold }

// Rank scores every document, drops those below the threshold and returns the
// rest sorted by RelevanceScore, highest first. An empty result means nothing
// relevant was found.
func (e *Engine) Rank(query string, docs []domain.RetrievedDocument) ([]domain.RetrievedDocument, Outcome) {
	out := Outcome{Candidates: len(docs)}
	if len(docs) == 0 {
		return nil, out
	}

	queryTerms := terms(query)
	kept := make([]domain.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		score, err := e.score(queryTerms, d)
		if err != nil {
			out.Excluded++
			continue
		}
		if score < e.threshold {
			continue
		}
		d.RelevanceScore = score
		kept = append(kept, d)
	}

	if out.Excluded == len(docs) {
		out.Fallback = true
		kept = rawSimilarity(docs)
	}

	sortByScore(kept)
	out.Kept = len(kept)
	return kept, out
}

// Score returns the combined score of a single document.
func (e *Engine) Score(query string, d domain.RetrievedDocument) (float64, error) {
	return e.score(terms(query), d)
}

func (e *Engine) score(queryTerms map[string]struct{}, d domain.RetrievedDocument) (float64, error) {
	if !finite(d.Similarity) {
		return 0, fmt.Errorf("document %s: similarity is not finite", d.ID)
	}
	quality, err := e.quality(d)
	if err != nil {
		return 0, err
	}
	recency, err := e.recency(d)
	if err != nil {
		return 0, err
	}

	combined := e.weights.Semantic*vecmath.Clamp(d.Similarity, 0, 1) +
		e.weights.Keyword*keywordOverlap(queryTerms, d.Content) +
		e.weights.Quality*quality +
		e.weights.Recency*recency
	return vecmath.Clamp(combined, 0, 1), nil
}

func (e *Engine) quality(d domain.RetrievedDocument) (float64, error) {
	if q := d.Metadata.Quality; q != nil {
		if !finite(*q) || *q < 0 || *q > 1 {
			return 0, fmt.Errorf("document %s: quality %v outside [0,1]", d.ID, *q)
		}
		return *q, nil
	}
	n := len([]rune(strings.TrimSpace(d.Content)))
	switch {
	case n == 0:
		return 0, nil
	case n < 200:
		return float64(n) / 200, nil
	case n <= 2000:
		return 1, nil
	default:
		return math.Max(0.5, 2000/float64(n)), nil
	}
}

func (e *Engine) recency(d domain.RetrievedDocument) (float64, error) {
	if r := d.Metadata.Recency; r != nil {
		if !finite(*r) || *r < 0 || *r > 1 {
			return 0, fmt.Errorf("document %s: recency %v outside [0,1]", d.ID, *r)
		}
		return *r, nil
	}
	ts := strings.TrimSpace(d.Metadata.UpdatedAt)
	if ts == "" {
		return 0.5, nil
	}
	var at time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if at, err = time.Parse(layout, ts); err == nil {
			break
		}
	}
	if err != nil {
		return 0.5, nil
	}
	ageDays := e.now().Sub(at).Hours() / 24
	if ageDays < 0 {
		return 1, nil
	}
	return math.Max(0, 1-ageDays/365), nil
}

func rawSimilarity(docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	out := make([]domain.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		if finite(d.Similarity) {
			d.RelevanceScore = vecmath.Clamp(d.Similarity, 0, 1)
		} else {
			d.RelevanceScore = 0
		}
		out = append(out, d)
	}
	return out
}

func sortByScore(docs []domain.RetrievedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].RelevanceScore != docs[j].RelevanceScore {
			return docs[i].RelevanceScore > docs[j].RelevanceScore
		}
		return docs[i].ID < docs[j].ID
	})
}

func keywordOverlap(queryTerms map[string]struct{}, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := terms(content)
	hits := 0
	for t := range queryTerms {
		if _, ok := docTerms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "for": {}, "with": {}, "at": {}, "by": {}, "it": {},
	"my": {}, "your": {}, "you": {}, "i": {}, "me": {}, "we": {}, "our": {}, "do": {}, "does": {},
	"what": {}, "how": {}, "when": {}, "where": {}, "can": {}, "this": {}, "that": {}, "be": {},
}

func terms(text string) map[string]struct{} {
	out := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
