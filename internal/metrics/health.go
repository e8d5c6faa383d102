package metrics

import (
	"sort"
	"sync"

	"github.com/namanjain27/EchoPilot/internal/logger"
)

// Health counts consecutive failures per dependency so that absorbed
// failures still surface as an outage. A nil *Health is a no-op.
type Health struct {
	mu        sync.Mutex
	threshold int
	failures  map[string]int
	log       *logger.Logger
}

// NewHealth marks a dependency unhealthy after threshold consecutive failures.
func NewHealth(threshold int, log *logger.Logger) *Health {
	if threshold < 1 {
		threshold = 1
	}
	return &Health{threshold: threshold, failures: make(map[string]int), log: log}
}

// Failure records an absorbed failure of dependency.
func (h *Health) Failure(dependency string, err error) {
	DegradedTotal.WithLabelValues(dependency).Inc()
	if h == nil {
		return
	}
	h.mu.Lock()
	h.failures[dependency]++
	n := h.failures[dependency]
	h.mu.Unlock()

	if n == h.threshold {
		h.log.Error("dependency unhealthy", "dependency", dependency, "consecutive_failures", n, "error", err)
	}
}

// Success resets the failure streak of dependency.
func (h *Health) Success(dependency string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	prev := h.failures[dependency]
	delete(h.failures, dependency)
	h.mu.Unlock()

	if prev >= h.threshold {
		h.log.Info("dependency recovered", "dependency", dependency)
	}
}

// Unhealthy lists dependencies at or above the failure threshold.
func (h *Health) Unhealthy() []string {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for dep, n := range h.failures {
		if n >= h.threshold {
			out = append(out, dep)
		}
	}
	sort.Strings(out)
	return out
}
