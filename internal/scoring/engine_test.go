package scoring

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultWeights, DefaultThreshold)
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestNewValidatesWeights(t *testing.T) {
	_, err := New(Weights{Semantic: 0.1, Keyword: 0.5}, 0.4)
	assert.Error(t, err)
	_, err = New(Weights{Semantic: 0.5, Keyword: -0.1}, 0.4)
	assert.Error(t, err)
	_, err = New(DefaultWeights, 1.5)
	assert.Error(t, err)

	e, err := New(Weights{Semantic: 5, Keyword: 2, Quality: 1.5, Recency: 1.5}, 0.4)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, e.weights.Semantic, 1e-9)
}

func TestRankDropsBelowThresholdAndSorts(t *testing.T) {
	e := newEngine(t)
	docs := []domain.RetrievedDocument{
		{ID: "low", Content: "Unrelated text", Similarity: 0.05, Metadata: domain.DocumentMetadata{Quality: ptr(0.1), Recency: ptr(0.1)}},
		{ID: "mid", Content: "Our business hours are 9 to 6", Similarity: 0.6, Metadata: domain.DocumentMetadata{Quality: ptr(0.5), Recency: ptr(0.5)}},
		{ID: "top", Content: "Business hours: Monday to Saturday", Similarity: 0.9, Metadata: domain.DocumentMetadata{Quality: ptr(1), Recency: ptr(1)}},
	}

	ranked, out := e.Rank("What are your business hours?", docs)
	require.Len(t, ranked, 2)
	assert.Equal(t, "top", ranked[0].ID)
	assert.Equal(t, "mid", ranked[1].ID)
	assert.False(t, out.Fallback)
	assert.Equal(t, 2, out.Kept)
	for _, d := range ranked {
		assert.GreaterOrEqual(t, d.RelevanceScore, DefaultThreshold)
	}
}

func TestRankNothingRelevant(t *testing.T) {
	e := newEngine(t)
	ranked, out := e.Rank("refund", []domain.RetrievedDocument{
		{ID: "a", Content: "x", Similarity: 0.01, Metadata: domain.DocumentMetadata{Quality: ptr(0), Recency: ptr(0)}},
	})
	assert.Empty(t, ranked)
	assert.Equal(t, 1, out.Candidates)
	assert.Zero(t, out.Kept)
}

func TestRankExcludesBrokenDocumentOnly(t *testing.T) {
	e := newEngine(t)
	docs := []domain.RetrievedDocument{
		{ID: "bad", Content: "refund policy", Similarity: math.NaN()},
		{ID: "good", Content: "refund policy details", Similarity: 0.9, Metadata: domain.DocumentMetadata{Quality: ptr(1), Recency: ptr(1)}},
	}
	ranked, out := e.Rank("refund policy", docs)
	require.Len(t, ranked, 1)
	assert.Equal(t, "good", ranked[0].ID)
	assert.Equal(t, 1, out.Excluded)
	assert.False(t, out.Fallback)
}

func TestRankFallsBackToRawSimilarity(t *testing.T) {
	e := newEngine(t)
	docs := []domain.RetrievedDocument{
		{ID: "a", Similarity: 0.2, Metadata: domain.DocumentMetadata{Quality: ptr(7)}},
		{ID: "b", Similarity: 0.8, Metadata: domain.DocumentMetadata{Recency: ptr(-1)}},
	}
	ranked, out := e.Rank("anything", docs)
	assert.True(t, out.Fallback)
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].ID)
	assert.InDelta(t, 0.8, ranked[0].RelevanceScore, 1e-9)
}

func TestRecencyFromTimestamp(t *testing.T) {
	e := newEngine(t)
	fresh := domain.RetrievedDocument{ID: "f", Metadata: domain.DocumentMetadata{UpdatedAt: "2025-05-31T00:00:00Z"}}
	stale := domain.RetrievedDocument{ID: "s", Metadata: domain.DocumentMetadata{UpdatedAt: "2023-01-01"}}
	unknown := domain.RetrievedDocument{ID: "u", Metadata: domain.DocumentMetadata{UpdatedAt: "last tuesday"}}

	r, err := e.recency(fresh)
	require.NoError(t, err)
	assert.Greater(t, r, 0.99)
	r, _ = e.recency(stale)
	assert.Equal(t, 0.0, r)
	r, _ = e.recency(unknown)
	assert.Equal(t, 0.5, r)
}

func TestQualityHeuristic(t *testing.T) {
	e := newEngine(t)
	q, _ := e.quality(domain.RetrievedDocument{Content: strings.Repeat("a", 100)})
	assert.InDelta(t, 0.5, q, 1e-9)
	q, _ = e.quality(domain.RetrievedDocument{Content: strings.Repeat("a", 800)})
	assert.Equal(t, 1.0, q)
	q, _ = e.quality(domain.RetrievedDocument{Content: strings.Repeat("a", 8000)})
	assert.Equal(t, 0.5, q)
}

func TestKeywordOverlapIgnoresStopWords(t *testing.T) {
	assert.Equal(t, 1.0, keywordOverlap(terms("What are the business hours"), "business hours listed"))
	assert.Equal(t, 0.5, keywordOverlap(terms("late fee"), "late payment"))
	assert.Equal(t, 0.0, keywordOverlap(terms("the a"), "anything"))
}

func TestCombinedScoreBoundedAndSorted(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewSource(7))
	words := []string{"rent", "deposit", "refund", "sofa", "delivery", "late", "fee"}

	for round := 0; round < 50; round++ {
		var docs []domain.RetrievedDocument
		for i := 0; i < 20; i++ {
			var sb strings.Builder
			for w := 0; w < rng.Intn(30); w++ {
				sb.WriteString(words[rng.Intn(len(words))] + " ")
			}
			docs = append(docs, domain.RetrievedDocument{
				ID:         string(rune('a' + i)),
				Content:    sb.String(),
				Similarity: rng.Float64()*3 - 1,
				Metadata:   domain.DocumentMetadata{Recency: ptr(rng.Float64())},
			})
		}
		for _, d := range docs {
			s, err := e.Score("late rent fee", d)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
		ranked, _ := e.Rank("late rent fee", docs)
		for i := 1; i < len(ranked); i++ {
			assert.GreaterOrEqual(t, ranked[i-1].RelevanceScore, ranked[i].RelevanceScore)
		}
	}
}
