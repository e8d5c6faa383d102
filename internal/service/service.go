// Package service runs support turns end to end: classification, retrieval,
// complaint validation, the reason/act loop, ticketing and summarization.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/namanjain27/EchoPilot/internal/agent"
	"github.com/namanjain27/EchoPilot/internal/chunking"
	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
	"github.com/namanjain27/EchoPilot/internal/repository"
	"github.com/namanjain27/EchoPilot/internal/session"
	"github.com/namanjain27/EchoPilot/internal/summary"
	"github.com/namanjain27/EchoPilot/internal/tickets"
	"github.com/namanjain27/EchoPilot/internal/tools"
)

// Classifier labels a message with intent, urgency and sentiment.
type Classifier interface {
	Classify(ctx context.Context, message string) domain.IntentAnalysis
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store      repository.Store
	Sessions   *session.Registry
	Classifier Classifier
	Retriever  tools.Retriever
	Validator  tools.ComplaintValidator
	Tickets    *tickets.Manager
	Tools      *tools.Registry
	Loop       *agent.Loop
	Summarizer *summary.Summarizer
	Ingest     *chunking.Pipeline
	Health     *metrics.Health
	Config     *config.Config
	Log        *logger.Logger
}

type Service struct {
	store      repository.Store
	sessions   *session.Registry
	classifier Classifier
	retriever  tools.Retriever
	validator  tools.ComplaintValidator
	tickets    *tickets.Manager
	tools      *tools.Registry
	loop       *agent.Loop
	summarizer *summary.Summarizer
	ingest     *chunking.Pipeline
	health     *metrics.Health
	config     *config.Config
	log        *logger.Logger
	now        func() time.Time

	// transcripts whose summary could not be saved, by summary key
	pendingMu sync.Mutex
	pending   map[string][]domain.Message
}

func New(d Deps) *Service {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	sessions := d.Sessions
	if sessions == nil {
		sessions = session.NewRegistry(cfg.Session.TTL)
	}
	return &Service{
		store:      d.Store,
		sessions:   sessions,
		classifier: d.Classifier,
		retriever:  d.Retriever,
		validator:  d.Validator,
		tickets:    d.Tickets,
		tools:      d.Tools,
		loop:       d.Loop,
		summarizer: d.Summarizer,
		ingest:     d.Ingest,
		health:     d.Health,
		config:     cfg,
		log:        log,
		now:        time.Now,
		pending:    make(map[string][]domain.Message),
	}
}

// Unhealthy lists the dependencies currently considered down.
func (s *Service) Unhealthy() []string {
	return s.health.Unhealthy()
}
