package service

import (
	"context"
	"fmt"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/session"
)

const maxPendingMessages = 1000

// EndSession stops any in-flight turn at its next step, folds the
// conversation into the cumulative summary and drops it from memory. Ending
// a session that is no longer live returns the stored summary.
func (s *Service) EndSession(ctx context.Context, sessionID string) (*domain.EndSessionResponse, error) {
	entry, ok := s.sessions.Get(sessionID)
	if !ok {
		stored, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if stored == nil {
			return nil, domain.ErrSessionNotFound
		}
		return &domain.EndSessionResponse{
			SessionID: sessionID,
			Summary:   s.summarizer.Load(ctx, stored.SummaryKey()),
		}, nil
	}

	entry.End()
	entry.Lock()
	defer entry.Unlock()
	if cur, live := s.sessions.Get(sessionID); !live || cur != entry {
		// archived by a concurrent end or sweep while we waited
		return &domain.EndSessionResponse{
			SessionID: sessionID,
			Summary:   s.summarizer.Load(ctx, entry.Session().SummaryKey()),
		}, nil
	}
	return s.archive(ctx, entry, domain.EventTypeSessionEnded), nil
}

// archive summarizes and clears a session. The caller holds the turn lock
// and has ended the entry. A transcript whose summary cannot be saved is kept
// as pending under the summary key and retried with the next archive.
func (s *Service) archive(ctx context.Context, entry *session.Entry, eventType domain.EventType) *domain.EndSessionResponse {
	sess := entry.Session()
	count := len(sess.Messages)
	key := sess.SummaryKey()

	messages := append(s.takePending(key), sess.Messages...)
	text, err := s.summarizer.Archive(ctx, key, messages)
	if err != nil {
		s.keepPending(key, messages)
		s.log.Warn("session summary not saved, kept for retry", "session_id", sess.SessionID, "error", err)
	}
	sess.Summary = text
	sess.Messages = nil

	if err := s.store.MarkSessionEnded(ctx, sess.SessionID, s.now()); err != nil {
		s.log.Warn("failed to mark session ended", "session_id", sess.SessionID, "error", err)
	}
	s.sessions.Remove(entry)
	s.record(ctx, sess.SessionID, eventType, domain.SessionEndedPayload{
		TenantID: sess.TenantID,
		Role:     sess.Role,
		Messages: count,
		Summary:  err == nil && count > 0,
	})
	s.log.Info("session archived", "session_id", sess.SessionID, "reason", eventType, "messages", count)

	return &domain.EndSessionResponse{SessionID: sess.SessionID, Summary: text}
}

// RetryPending archives the transcripts left over by failed summaries and
// returns how many summary keys were saved.
func (s *Service) RetryPending(ctx context.Context) int {
	s.pendingMu.Lock()
	keys := make([]string, 0, len(s.pending))
	for key := range s.pending {
		keys = append(keys, key)
	}
	s.pendingMu.Unlock()

	saved := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		messages := s.takePending(key)
		if len(messages) == 0 {
			continue
		}
		if _, err := s.summarizer.Archive(ctx, key, messages); err != nil {
			s.keepPending(key, messages)
			s.log.Warn("pending summary still not saved", "key", key, "messages", len(messages), "error", err)
			continue
		}
		saved++
	}
	return saved
}

// PendingMessages returns how many messages wait for a summary under key.
func (s *Service) PendingMessages(key string) int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending[key])
}

func (s *Service) takePending(key string) []domain.Message {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	messages := s.pending[key]
	delete(s.pending, key)
	return messages
}

// keepPending puts messages back in front of anything queued meanwhile. The
// oldest messages are dropped beyond maxPendingMessages.
func (s *Service) keepPending(key string, messages []domain.Message) {
	if len(messages) == 0 {
		return
	}
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	merged := append(append([]domain.Message(nil), messages...), s.pending[key]...)
	if over := len(merged) - maxPendingMessages; over > 0 {
		s.log.Warn("dropping oldest pending messages", "key", key, "dropped", over)
		merged = merged[over:]
	}
	s.pending[key] = merged
}

// GetMessages returns the stored transcript of a session, tool traffic included.
func (s *Service) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	messages, err := s.store.GetMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}
