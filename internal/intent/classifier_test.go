package intent

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

// oneHotEmbedder maps text onto the axis of its keyword intent.
type oneHotEmbedder struct {
	failAfter int64
	calls     atomic.Int64
}

func (e *oneHotEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	n := e.calls.Add(1)
	if e.failAfter > 0 && n > e.failAfter {
		return nil, errors.New("embedding service unavailable")
	}
	v := make([]float32, 3)
	switch KeywordClassify(text).Intent {
	case domain.IntentQuery:
		v[0] = 1
	case domain.IntentComplaint:
		v[1] = 1
	case domain.IntentServiceRequest:
		v[2] = 1
	}
	return v, nil
}

// randomEmbedder returns a pseudo-random vector seeded by the text.
type randomEmbedder struct{}

func (randomEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	v := make([]float32, 16)
	for i := range v {
		v[i] = float32(rng.Float64()*2 - 1)
	}
	return v, nil
}

func TestClassifyEmbeddingPath(t *testing.T) {
	c := New(context.Background(), &oneHotEmbedder{}, time.Second, logger.Nop())
	require.True(t, c.EmbeddingsEnabled())

	got := c.Classify(context.Background(), "The app crashes every time I pay rent")
	assert.Equal(t, domain.IntentComplaint, got.Intent)
	assert.Equal(t, domain.ClassificationEmbedding, got.Method)
	assert.GreaterOrEqual(t, got.Confidence, 0.3)
	assert.LessOrEqual(t, got.Confidence, 1.0)

	got = c.Classify(context.Background(), "What are your business hours?")
	assert.Equal(t, domain.IntentQuery, got.Intent)
	assert.Equal(t, domain.UrgencyLow, got.Urgency)
	assert.Equal(t, domain.SentimentNeutral, got.Sentiment)
}

func TestClassifyConfidenceRangeOnEmbeddingPath(t *testing.T) {
	c := New(context.Background(), randomEmbedder{}, time.Second, logger.Nop())
	for _, msg := range []string{"a", "refund please", "the sofa is torn", "hello there", "xyz 123", "la la la"} {
		got := c.Classify(context.Background(), msg)
		assert.GreaterOrEqual(t, got.Confidence, 0.3, msg)
		assert.LessOrEqual(t, got.Confidence, 1.0, msg)
	}
}

func TestClassifyFallsBackWhenEmbeddingFails(t *testing.T) {
	// 30 calls build the centroids, the next call fails
	c := New(context.Background(), &oneHotEmbedder{failAfter: 30}, time.Second, logger.Nop())
	require.True(t, c.EmbeddingsEnabled())

	got := c.Classify(context.Background(), "I need help setting up delivery")
	assert.Equal(t, domain.ClassificationKeyword, got.Method)
	assert.Equal(t, 0.6, got.Confidence)
	assert.Equal(t, domain.IntentServiceRequest, got.Intent)
}

// stallingEmbedder serves the centroid examples and then stops answering.
type stallingEmbedder struct {
	oneHotEmbedder
	after int64
}

func (e *stallingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.calls.Load() >= e.after {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return e.oneHotEmbedder.Embed(ctx, text)
}

func TestClassifyBoundsEmbeddingCall(t *testing.T) {
	c := New(context.Background(), &stallingEmbedder{after: 30}, 50*time.Millisecond, logger.Nop())
	require.True(t, c.EmbeddingsEnabled())

	done := make(chan domain.IntentAnalysis, 1)
	go func() { done <- c.Classify(context.Background(), "The washing machine is broken") }()

	select {
	case got := <-done:
		assert.Equal(t, domain.ClassificationKeyword, got.Method)
		assert.Equal(t, domain.IntentComplaint, got.Intent)
	case <-time.After(5 * time.Second):
		t.Fatal("Classify did not return after the embedder timed out")
	}
}

func TestNewWithoutEmbedder(t *testing.T) {
	c := New(context.Background(), nil, time.Second, logger.Nop())
	assert.False(t, c.EmbeddingsEnabled())
	got := c.Classify(context.Background(), "anything")
	assert.Equal(t, 0.6, got.Confidence)

	broken := New(context.Background(), &oneHotEmbedder{failAfter: 3}, time.Second, logger.Nop())
	assert.False(t, broken.EmbeddingsEnabled())
}

func TestKeywordClassify(t *testing.T) {
	cases := []struct {
		msg       string
		intent    domain.Intent
		urgency   domain.Urgency
		sentiment domain.Sentiment
	}{
		{"What are your business hours?", domain.IntentQuery, domain.UrgencyLow, domain.SentimentNeutral},
		{"The washing machine is broken, this is urgent!", domain.IntentComplaint, domain.UrgencyHigh, domain.SentimentNegative},
		{"Please help me schedule a pickup", domain.IntentServiceRequest, domain.UrgencyMedium, domain.SentimentNeutral},
		{"Great service, a minor suggestion for the app", domain.IntentServiceRequest, domain.UrgencyLow, domain.SentimentPositive},
		{"I want this done soon", domain.IntentServiceRequest, domain.UrgencyMedium, domain.SentimentNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			got := KeywordClassify(tc.msg)
			assert.Equal(t, tc.intent, got.Intent)
			assert.Equal(t, tc.urgency, got.Urgency)
			assert.Equal(t, tc.sentiment, got.Sentiment)
			assert.Equal(t, 0.6, got.Confidence)
		})
	}
}
