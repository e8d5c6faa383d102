package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/namanjain27/EchoPilot/internal/access"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/vecmath"
)

// Memory is an in-process Store. The predicate is applied before ranking so
// out-of-scope chunks never take a slot in the top k.
type Memory struct {
	mu     sync.RWMutex
	chunks map[string]domain.DocumentChunk
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{chunks: make(map[string]domain.DocumentChunk)}
}

func (m *Memory) Upsert(_ context.Context, chunks []domain.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if c.ID == "" {
			return opErr("upsert", OperationErrorValidation, "chunk id is required", nil)
		}
		c.Vector = append([]float32(nil), c.Vector...)
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, vector []float32, predicate *domain.AccessPredicate, k int) ([]domain.RetrievedDocument, error) {
	if predicate == nil {
		return nil, ErrMissingPredicate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultK
	}

	m.mu.RLock()
	out := make([]domain.RetrievedDocument, 0, len(m.chunks))
	for _, c := range m.chunks {
		if !access.Matches(*predicate, c.Metadata) {
			continue
		}
		out = append(out, domain.RetrievedDocument{
			ID:         c.ID,
			Content:    c.Content,
			Similarity: vecmath.Clamp(vecmath.Cosine(vector, c.Vector), 0, 1),
			Metadata:   c.Metadata,
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity == out[j].Similarity {
			return out[i].ID < out[j].ID
		}
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len reports how many chunks are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}
