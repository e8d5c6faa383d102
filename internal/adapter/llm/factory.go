package llm

import (
	"context"
	"fmt"

	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

// Clients bundles the model clients used by the engine.
type Clients struct {
	Completer Completer
	Generator Generator
	// Embedder is nil when no embedding backend is configured.
	Embedder Embedder
}

// NewClients builds the clients from configuration. Mock mode returns the
// offline MockClient for all three. Otherwise reasoning goes through LiteLLM,
// and generation and embeddings prefer Gemini when a key is configured.
func NewClients(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Clients, error) {
	if cfg.MockMode {
		log.Info("mock mode enabled, using mock LLM client")
		mock := NewMockClient()
		return &Clients{Completer: mock, Generator: mock, Embedder: mock}, nil
	}

	reasoner := NewReasoner(NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout), cfg.LLM.Model, cfg.LLM.EmbeddingModel)
	clients := &Clients{Completer: reasoner, Generator: reasoner}
	if cfg.LLM.EmbeddingModel != "" {
		clients.Embedder = reasoner
	}

	if cfg.Gemini.APIKey != "" {
		gemini, err := NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbeddingModel, cfg.LLM.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		clients.Generator = gemini
		if cfg.Gemini.EmbeddingModel != "" {
			clients.Embedder = gemini
		}
		log.Info("gemini enabled for generation", "model", cfg.Gemini.Model, "embedding_model", cfg.Gemini.EmbeddingModel)
	}

	if clients.Embedder == nil {
		log.Warn("no embedding backend configured, intent classification falls back to keywords")
	}
	return clients, nil
}
