// Package retrieval fetches knowledge for a query under the caller's tenant
// and role, then ranks it for relevance.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/namanjain27/EchoPilot/internal/access"
	"github.com/namanjain27/EchoPilot/internal/adapter/vectorstore"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
	"github.com/namanjain27/EchoPilot/internal/scoring"
)

// Embedder produces a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs embed, search, access filter and relevance ranking.
type Retriever struct {
	embedder Embedder
	store    vectorstore.Store
	engine   *scoring.Engine
	k        int
	timeout  time.Duration
	health   *metrics.Health
	log      *logger.Logger
}

// New builds a retriever. k <= 0 uses the store default.
func New(embedder Embedder, store vectorstore.Store, engine *scoring.Engine, k int, timeout time.Duration, health *metrics.Health, log *logger.Logger) *Retriever {
	if k <= 0 {
		k = vectorstore.DefaultK
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		engine:   engine,
		k:        k,
		timeout:  timeout,
		health:   health,
		log:      log,
	}
}

// Retrieve returns the ranked documents for query. An empty slice with a nil
// error means nothing relevant was found. Errors are ExternalCallErrors and
// callers are expected to continue without knowledge context.
func (r *Retriever) Retrieve(ctx context.Context, tenantID string, role domain.UserRole, query string) ([]domain.RetrievedDocument, error) {
	predicate, err := access.Build(tenantID, role)
	if err != nil {
		return nil, fmt.Errorf("build access predicate: %w", err)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	metrics.ExternalCallSeconds.WithLabelValues(metrics.DepEmbeddings).Observe(time.Since(start).Seconds())
	if err != nil {
		r.health.Failure(metrics.DepEmbeddings, err)
		return nil, domain.NewExternalCallError(metrics.DepEmbeddings, "embed_query", err)
	}
	r.health.Success(metrics.DepEmbeddings)

	start = time.Now()
	docs, err := r.store.Search(ctx, vec, &predicate, r.k)
	metrics.ExternalCallSeconds.WithLabelValues(metrics.DepVectorStore).Observe(time.Since(start).Seconds())
	if err != nil {
		r.health.Failure(metrics.DepVectorStore, err)
		return nil, domain.NewExternalCallError(metrics.DepVectorStore, "search", err)
	}
	r.health.Success(metrics.DepVectorStore)

	// Stores apply the predicate themselves; filtering again keeps scoring
	// from ever seeing a document outside the request scope.
	scoped := access.Filter(predicate, docs)
	if dropped := len(docs) - len(scoped); dropped > 0 {
		r.log.Warn("vector store returned out-of-scope documents", "tenant_id", tenantID, "role", role, "dropped", dropped)
	}

	ranked, outcome := r.engine.Rank(query, scoped)
	metrics.RetrievalKept.Observe(float64(outcome.Kept))
	if outcome.Fallback {
		r.log.Warn("relevance scoring failed for every document, using raw similarity", "candidates", outcome.Candidates)
	}
	r.log.Debug("retrieval finished",
		"tenant_id", tenantID,
		"role", role,
		"candidates", outcome.Candidates,
		"kept", outcome.Kept,
		"excluded", outcome.Excluded,
	)
	return ranked, nil
}
