package service

import (
	"context"
	"time"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

const defaultSweepInterval = time.Minute

// RunSessionSweepMonitor evicts idle sessions until ctx is done.
func (s *Service) RunSessionSweepMonitor(ctx context.Context) {
	interval := s.config.Session.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdle(ctx)
		}
	}
}

// SweepIdle summarizes and evicts every session idle longer than the TTL and
// returns how many were evicted. A session that saw activity after it was
// picked is left alone.
func (s *Service) SweepIdle(ctx context.Context) int {
	evicted := 0
	for _, entry := range s.sessions.Idle() {
		if ctx.Err() != nil {
			break
		}
		entry.Lock()
		if entry.Ended() || !s.sessions.Expired(entry) {
			entry.Unlock()
			continue
		}
		entry.End()
		s.archive(ctx, entry, domain.EventTypeSessionEvicted)
		entry.Unlock()
		evicted++
	}
	if evicted > 0 {
		s.log.Info("idle sessions evicted", "count", evicted, "live", s.sessions.Len())
	}
	if n := s.RetryPending(ctx); n > 0 {
		s.log.Info("pending summaries saved", "count", n)
	}
	return evicted
}

// ArchiveAll ends every live session, waiting for in-flight turns to observe
// the cancellation, and returns how many were archived. It is used on
// shutdown.
func (s *Service) ArchiveAll(ctx context.Context) int {
	archived := 0
	for _, entry := range s.sessions.All() {
		entry.End()
		entry.Lock()
		if cur, live := s.sessions.Get(entry.Session().SessionID); !live || cur != entry {
			entry.Unlock()
			continue
		}
		s.archive(ctx, entry, domain.EventTypeSessionEnded)
		entry.Unlock()
		archived++
	}
	s.RetryPending(ctx)
	return archived
}
