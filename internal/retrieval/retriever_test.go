package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/adapter/vectorstore"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
	"github.com/namanjain27/EchoPilot/internal/scoring"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type failingStore struct{}

func (failingStore) Search(context.Context, []float32, *domain.AccessPredicate, int) ([]domain.RetrievedDocument, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Upsert(context.Context, []domain.DocumentChunk) error { return nil }

// leakyStore ignores the predicate, as a misconfigured index might.
type leakyStore struct{ docs []domain.RetrievedDocument }

func (s leakyStore) Search(context.Context, []float32, *domain.AccessPredicate, int) ([]domain.RetrievedDocument, error) {
	return s.docs, nil
}

func (leakyStore) Upsert(context.Context, []domain.DocumentChunk) error { return nil }

func newEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	e, err := scoring.New(scoring.DefaultWeights, scoring.DefaultThreshold)
	require.NoError(t, err)
	return e
}

func seededMemory(t *testing.T) *vectorstore.Memory {
	t.Helper()
	m := vectorstore.NewMemory()
	require.NoError(t, m.Upsert(context.Background(), []domain.DocumentChunk{
		{
			ID:      "hours.txt#0",
			Content: "Our business hours are 9am to 6pm, Monday to Saturday.",
			Vector:  []float32{1, 0},
			Metadata: domain.DocumentMetadata{
				TenantID:    "t1",
				AccessRoles: []domain.UserRole{domain.UserRoleCustomer},
				Visibility:  domain.VisibilityPrivate,
			},
		},
		{
			ID:      "unrelated.txt#0",
			Content: "x",
			Vector:  []float32{0, 1},
			Metadata: domain.DocumentMetadata{
				TenantID:    "t1",
				AccessRoles: []domain.UserRole{domain.UserRoleCustomer},
				Visibility:  domain.VisibilityPrivate,
			},
		},
		{
			ID:      "other-tenant.txt#0",
			Content: "Business hours for another company.",
			Vector:  []float32{1, 0},
			Metadata: domain.DocumentMetadata{
				TenantID:   "t2",
				Visibility: domain.VisibilityPublic,
			},
		},
	}))
	return m
}

func TestRetrieveRanksWithinScope(t *testing.T) {
	r := New(fixedEmbedder{vec: []float32{1, 0}}, seededMemory(t), newEngine(t), 4, 0, nil, logger.Nop())

	docs, err := r.Retrieve(context.Background(), "t1", domain.UserRoleCustomer, "What are your business hours?")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hours.txt#0", docs[0].ID)
	assert.GreaterOrEqual(t, docs[0].RelevanceScore, scoring.DefaultThreshold)
	assert.LessOrEqual(t, docs[0].RelevanceScore, 1.0)
}

func TestRetrieveRejectsMissingTenant(t *testing.T) {
	r := New(fixedEmbedder{vec: []float32{1, 0}}, seededMemory(t), newEngine(t), 4, 0, nil, logger.Nop())
	_, err := r.Retrieve(context.Background(), "", domain.UserRoleCustomer, "hours")
	assert.Error(t, err)
}

func TestRetrieveWrapsEmbeddingFailure(t *testing.T) {
	health := metrics.NewHealth(1, logger.Nop())
	r := New(fixedEmbedder{err: errors.New("quota exceeded")}, seededMemory(t), newEngine(t), 4, 0, health, logger.Nop())

	_, err := r.Retrieve(context.Background(), "t1", domain.UserRoleCustomer, "hours")
	var ext *domain.ExternalCallError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, metrics.DepEmbeddings, ext.Dependency)
	assert.Equal(t, []string{metrics.DepEmbeddings}, health.Unhealthy())
}

func TestRetrieveWrapsStoreFailure(t *testing.T) {
	r := New(fixedEmbedder{vec: []float32{1}}, failingStore{}, newEngine(t), 4, 0, nil, logger.Nop())
	_, err := r.Retrieve(context.Background(), "t1", domain.UserRoleCustomer, "hours")
	var ext *domain.ExternalCallError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, metrics.DepVectorStore, ext.Dependency)
}

func TestRetrieveDropsOutOfScopeDocuments(t *testing.T) {
	store := leakyStore{docs: []domain.RetrievedDocument{
		{ID: "mine", Content: "business hours", Similarity: 0.9, Metadata: domain.DocumentMetadata{TenantID: "t1", Visibility: domain.VisibilityPublic}},
		{ID: "theirs", Content: "business hours", Similarity: 0.99, Metadata: domain.DocumentMetadata{TenantID: "t2", Visibility: domain.VisibilityPublic}},
	}}
	r := New(fixedEmbedder{vec: []float32{1}}, store, newEngine(t), 4, 0, nil, logger.Nop())

	docs, err := r.Retrieve(context.Background(), "t1", domain.UserRoleCustomer, "business hours")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "mine", docs[0].ID)
}
