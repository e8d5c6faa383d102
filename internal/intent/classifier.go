// Package intent labels customer messages with intent, urgency and sentiment.
package intent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/vecmath"
)

const (
	minConfidence     = 0.3
	keywordConfidence = 0.6
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Classifier compares message embeddings against per-intent centroids and
// falls back to keyword rules when embeddings are unavailable.
type Classifier struct {
	embedder  Embedder
	timeout   time.Duration
	centroids map[domain.Intent][]float32
	log       *logger.Logger
}

// New builds a classifier and precomputes the intent centroids. When embedder
// is nil or any example fails to embed the classifier runs keyword-only.
// timeout bounds each embedding call.
func New(ctx context.Context, embedder Embedder, timeout time.Duration, log *logger.Logger) *Classifier {
	c := &Classifier{embedder: embedder, timeout: timeout, log: log}
	if embedder == nil {
		log.Warn("intent classifier running without embeddings")
		return c
	}
	centroids, err := c.computeCentroids(ctx)
	if err != nil {
		log.Warn("intent centroids unavailable, using keyword classification", "error", err)
		return c
	}
	c.centroids = centroids
	return c
}

// EmbeddingsEnabled reports whether the embedding path is active.
func (c *Classifier) EmbeddingsEnabled() bool {
	return c.centroids != nil
}

// embed calls the embedder under the per-call timeout.
func (c *Classifier) embed(ctx context.Context, text string) ([]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.embedder.Embed(ctx, text)
}

func (c *Classifier) computeCentroids(ctx context.Context) (map[domain.Intent][]float32, error) {
	var mu sync.Mutex
	out := make(map[domain.Intent][]float32, len(intentExamples))

	g, gctx := errgroup.WithContext(ctx)
	for _, in := range intentOrder {
		examples := intentExamples[in]
		g.Go(func() error {
			vectors := make([][]float32, 0, len(examples))
			for _, ex := range examples {
				v, err := c.embed(gctx, ex)
				if err != nil {
					return fmt.Errorf("embed %s example: %w", in, err)
				}
				vectors = append(vectors, v)
			}
			centroid := vecmath.Mean(vectors)
			mu.Lock()
			out[in] = centroid
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Classify analyzes one message. It never fails: an embedding error drops
// to keyword classification for that message.
func (c *Classifier) Classify(ctx context.Context, message string) domain.IntentAnalysis {
	lower := strings.ToLower(message)
	if c.centroids != nil {
		vec, err := c.embed(ctx, message)
		if err == nil {
			intent, sim := c.nearest(vec)
			return domain.IntentAnalysis{
				Intent:     intent,
				Urgency:    classifyUrgency(lower),
				Sentiment:  classifySentiment(lower),
				Confidence: vecmath.Clamp(sim, minConfidence, 1.0),
				Method:     domain.ClassificationEmbedding,
			}
		}
		c.log.Warn("message embedding failed, using keyword classification", "error", err)
	}
	return KeywordClassify(message)
}

func (c *Classifier) nearest(vec []float32) (domain.Intent, float64) {
	best := domain.IntentQuery
	bestSim := -2.0
	for _, in := range intentOrder {
		if sim := vecmath.Cosine(vec, c.centroids[in]); sim > bestSim {
			best, bestSim = in, sim
		}
	}
	return best, bestSim
}

// KeywordClassify is the embedding-free classification path.
func KeywordClassify(message string) domain.IntentAnalysis {
	lower := strings.ToLower(message)
	return domain.IntentAnalysis{
		Intent:     classifyIntentKeywords(lower),
		Urgency:    classifyUrgency(lower),
		Sentiment:  classifySentiment(lower),
		Confidence: keywordConfidence,
		Method:     domain.ClassificationKeyword,
	}
}

func classifyIntentKeywords(lower string) domain.Intent {
	switch {
	case containsAny(lower, complaintKeywords):
		return domain.IntentComplaint
	case containsAny(lower, serviceKeywords):
		return domain.IntentServiceRequest
	default:
		return domain.IntentQuery
	}
}

func classifyUrgency(lower string) domain.Urgency {
	for _, u := range urgencyOrder {
		if containsAny(lower, urgencyKeywords[u]) {
			return u
		}
	}
	if containsAny(lower, contextualMedium) {
		return domain.UrgencyMedium
	}
	return domain.UrgencyLow
}

func classifySentiment(lower string) domain.Sentiment {
	pos := countHits(lower, positiveWords)
	neg := countHits(lower, negativeWords)
	switch {
	case neg > pos:
		return domain.SentimentNegative
	case pos > neg:
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func countHits(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}
