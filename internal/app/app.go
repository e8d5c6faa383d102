// Package app wires the support engine from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/namanjain27/EchoPilot/internal/adapter/events"
	"github.com/namanjain27/EchoPilot/internal/adapter/extract"
	"github.com/namanjain27/EchoPilot/internal/adapter/jira"
	"github.com/namanjain27/EchoPilot/internal/adapter/llm"
	"github.com/namanjain27/EchoPilot/internal/adapter/vectorstore"
	"github.com/namanjain27/EchoPilot/internal/agent"
	"github.com/namanjain27/EchoPilot/internal/chunking"
	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/intent"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
	"github.com/namanjain27/EchoPilot/internal/repository"
	"github.com/namanjain27/EchoPilot/internal/retrieval"
	"github.com/namanjain27/EchoPilot/internal/scoring"
	"github.com/namanjain27/EchoPilot/internal/service"
	"github.com/namanjain27/EchoPilot/internal/session"
	"github.com/namanjain27/EchoPilot/internal/summary"
	"github.com/namanjain27/EchoPilot/internal/tickets"
	"github.com/namanjain27/EchoPilot/internal/tools"
	"github.com/namanjain27/EchoPilot/internal/validator"
	"github.com/namanjain27/EchoPilot/policy"
)

const dimensionProbe = "dimension probe"

// App is a wired engine and the resources it must release.
type App struct {
	Service *service.Service
	Store   *repository.SQLiteStore
	Health  *metrics.Health

	closers []func() error
}

// Build wires every component. Mock mode replaces the models with the
// offline mock and the vector store with the in-memory one; the repository
// is always SQLite.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	a.Store = db
	a.closers = append(a.closers, db.Close)

	health := metrics.NewHealth(cfg.Health.DegradedAfter, log)
	a.Health = health

	// Initialize model clients
	clients, err := llm.NewClients(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if clients.Embedder == nil {
		return nil, &domain.ConfigurationError{Field: "llm.embedding_model", Message: "an embedding backend is required for retrieval"}
	}

	// Initialize vector store
	index, err := buildIndex(ctx, cfg, clients.Embedder, log)
	if err != nil {
		return nil, err
	}

	engine, err := scoring.New(scoring.Weights{
		Semantic: cfg.Scoring.SemanticWeight,
		Keyword:  cfg.Scoring.KeywordWeight,
		Quality:  cfg.Scoring.QualityWeight,
		Recency:  cfg.Scoring.RecencyWeight,
	}, cfg.Scoring.Threshold)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "scoring", Message: err.Error()}
	}
	retriever := retrieval.New(clients.Embedder, index, engine, cfg.Qdrant.K, cfg.ExternalTimeout, health, log.With("component", "retrieval"))

	complaints := validator.New(clients.Generator, validator.Thresholds{
		AIPrimary:      cfg.Validation.AIPrimaryThreshold,
		PatternPrimary: cfg.Validation.PatternPrimaryThreshold,
		Combined:       cfg.Validation.CombinedThreshold,
	}, cfg.LLM.Timeout, health, log.With("component", "validator"))

	// Initialize ticketing
	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TicketTopic, log.With("component", "events"))
	a.closers = append(a.closers, publisher.Close)
	ticketMgr := tickets.NewManager(db, publisher, health, log.With("component", "tickets"))

	var issues tools.IssueCreator
	if cfg.JiraEnabled() {
		client, err := jira.NewClient(jira.Config{
			URL:        cfg.Jira.URL,
			Email:      cfg.Jira.Email,
			APIToken:   cfg.Jira.APIToken,
			ProjectKey: cfg.Jira.ProjectKey,
			IssueType:  cfg.Jira.IssueType,
			Timeout:    cfg.ExternalTimeout,
		})
		if err != nil {
			return nil, err
		}
		issues = client
		log.Info("jira mirroring enabled", "project", cfg.Jira.ProjectKey)
	}

	// Initialize policy engine and tools
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	executors := tools.NewExecutors(ticketMgr, issues, retriever, complaints, health, log.With("component", "tools"))
	registry, err := tools.NewRegistry(executors.Table(), policyEngine, log.With("component", "tools"))
	if err != nil {
		return nil, err
	}

	summaryStore, err := buildSummaryStore(ctx, cfg, db, a)
	if err != nil {
		return nil, err
	}

	chunker, err := chunking.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "chunking", Message: err.Error()}
	}

	a.Service = service.New(service.Deps{
		Store:      db,
		Sessions:   session.NewRegistry(cfg.Session.TTL),
		Classifier: intent.New(ctx, clients.Embedder, cfg.ExternalTimeout, log.With("component", "intent")),
		Retriever:  retriever,
		Validator:  complaints,
		Tickets:    ticketMgr,
		Tools:      registry,
		Loop: agent.New(clients.Completer, registry, agent.Config{
			MaxRounds:     cfg.Agent.MaxRounds,
			ReasonTimeout: cfg.LLM.Timeout,
			ToolTimeout:   cfg.Agent.ToolTimeout,
		}, health, log.With("component", "agent")),
		Summarizer: summary.New(clients.Generator, summaryStore, cfg.ExternalTimeout, health, log.With("component", "summary")),
		Ingest:     chunking.NewPipeline(chunker, extract.New(log), clients.Embedder, index, log.With("component", "ingest")),
		Health:     health,
		Config:     cfg,
		Log:        log,
	})
	ok = true
	return a, nil
}

func buildIndex(ctx context.Context, cfg *config.Config, embedder llm.Embedder, log *logger.Logger) (vectorstore.Store, error) {
	if cfg.MockMode {
		log.Info("mock mode enabled, using in-memory vector store")
		return vectorstore.NewMemory(), nil
	}
	q, err := vectorstore.NewQdrant(vectorstore.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Timeout:    cfg.ExternalTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ExternalTimeout)
	defer cancel()
	vec, err := embedder.Embed(probeCtx, dimensionProbe)
	if err != nil {
		log.Warn("embedding probe failed, collection not checked", "error", err)
		return q, nil
	}
	if err := q.EnsureCollection(probeCtx, len(vec)); err != nil {
		log.Warn("qdrant collection check failed", "collection", cfg.Qdrant.Collection, "error", err)
	}
	return q, nil
}

func buildSummaryStore(ctx context.Context, cfg *config.Config, db repository.Store, a *App) (summary.Store, error) {
	if cfg.Summary.Backend != "redis" {
		return summary.NewRepositoryStore(db), nil
	}
	rs, err := summary.NewRedisStore(ctx, summary.RedisOptions{
		Addr:     cfg.Summary.RedisAddr,
		Password: cfg.Summary.RedisPassword,
		DB:       cfg.Summary.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect summary store: %w", err)
	}
	a.closers = append(a.closers, rs.Close)
	return rs, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
