// Package summary compresses finished sessions into a cumulative,
// timestamped background summary per tenant and role.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
)

const (
	blockHeader     = "\n\n=== Chat Session (%s) ===\n"
	timestampLayout = "2006-01-02 15:04:05"
)

const systemPrompt = `Summarize the customer support conversation below using as few words as possible while keeping what matters.
1. Keep this format for the whole chat: user query: {what was requested}, AI response: {the resolution given, including any ticket id that was created}
2. Grade how well the session resolved the user's needs: A (fully resolved), B (partially resolved), C (unresolved)
The summary is read as background context in later sessions, so keep it short and factual.`

// Generator runs a plain, tool-free completion.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Summarizer turns a session transcript into a summary block.
type Summarizer struct {
	generator Generator
	store     Store
	timeout   time.Duration
	health    *metrics.Health
	log       *logger.Logger
	now       func() time.Time
}

// New creates a summarizer. timeout bounds each model and store call.
func New(generator Generator, store Store, timeout time.Duration, health *metrics.Health, log *logger.Logger) *Summarizer {
	return &Summarizer{
		generator: generator,
		store:     store,
		timeout:   timeout,
		health:    health,
		log:       log,
		now:       time.Now,
	}
}

// Load returns the stored summary for key, or "" when it cannot be read.
func (s *Summarizer) Load(ctx context.Context, key string) string {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	prior, err := s.store.Load(ctx, key)
	if err != nil {
		s.health.Failure(metrics.DepSummary, err)
		s.log.Warn("summary load failed", "key", key, "error", err)
		return ""
	}
	s.health.Success(metrics.DepSummary)
	return prior
}

// Archive summarizes messages, appends the block to the summary stored under
// key and saves the result. An empty transcript leaves the stored summary
// untouched. When the prior summary cannot be read nothing is saved, so an
// outage never replaces the history with a single block.
func (s *Summarizer) Archive(ctx context.Context, key string, messages []domain.Message) (string, error) {
	transcript := Transcript(messages)

	loadCtx, cancel := s.bound(ctx)
	prior, err := s.store.Load(loadCtx, key)
	cancel()
	if err != nil {
		s.health.Failure(metrics.DepSummary, err)
		return "", domain.NewExternalCallError(metrics.DepSummary, "load", err)
	}
	if len(transcript) == 0 {
		return prior, nil
	}

	updated := s.Summarize(ctx, prior, transcript)

	saveCtx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.Save(saveCtx, key, updated); err != nil {
		s.health.Failure(metrics.DepSummary, err)
		return updated, domain.NewExternalCallError(metrics.DepSummary, "save", err)
	}
	s.health.Success(metrics.DepSummary)
	s.log.Info("session summarized", "key", key, "messages", len(transcript), "summary_len", len(updated))
	return updated, nil
}

// Summarize appends one timestamped block for transcript to prior. It never
// returns prior unchanged for a non-empty transcript.
func (s *Summarizer) Summarize(ctx context.Context, prior string, transcript []domain.Message) string {
	if len(transcript) == 0 {
		return prior
	}
	header := fmt.Sprintf(blockHeader, s.now().Format(timestampLayout))

	genCtx, cancel := s.bound(ctx)
	defer cancel()
	text, err := s.generator.Generate(genCtx, systemPrompt, render(transcript))
	if err != nil {
		s.health.Failure(metrics.DepLLM, err)
		s.log.Warn("summary generation failed", "error", err)
		return prior + header + fmt.Sprintf("Chat session occurred but summary failed due to error: %v (%d messages)", err, len(transcript))
	}
	s.health.Success(metrics.DepLLM)

	if strings.TrimSpace(text) == "" {
		s.log.Warn("model returned an empty summary, keeping the full chat")
		return prior + header + fmt.Sprintf("Model gave empty response. Full chat (%d messages):\n%s", len(transcript), render(transcript))
	}
	return prior + header + strings.TrimSpace(text)
}

// Transcript keeps the user messages and final assistant answers of a
// session. Tool traffic and intermediate tool-calling replies are dropped.
func Transcript(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.MessageRoleUser:
		case domain.MessageRoleAssistant:
			if m.HasToolCalls() {
				continue
			}
		default:
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func render(messages []domain.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func (s *Summarizer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
