// Package chunking splits extracted document text into bounded, overlapping
// segments tagged with access metadata.
package chunking

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Tags are the access and provenance labels given at ingestion time.
type Tags struct {
	TenantID      string
	AccessRoles   []domain.UserRole
	Visibility    domain.Visibility
	KnowledgeBase string
	UpdatedAt     string
	Extra         map[string]string
}

// Chunker splits text by character count.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0,%d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split cuts text into chunks. A cut prefers the last paragraph break,
// newline or sentence end that falls in the final fifth of the window.
func (c *Chunker) Split(sourceID, text string, tags Tags) []domain.DocumentChunk {
	runes := []rune(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []string
	for start := 0; start < len(runes); {
		end := start + c.size
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}
		window := runes[start:end]
		length := breakPoint(window)
		pieces = append(pieces, string(window[:length]))

		next := start + length - c.overlap
		if next <= start {
			next = start + length
		}
		start = next
	}

	chunks := make([]domain.DocumentChunk, 0, len(pieces))
	for _, p := range pieces {
		content := strings.TrimSpace(p)
		if content == "" {
			continue
		}
		chunks = append(chunks, domain.DocumentChunk{Content: content})
	}
	for i := range chunks {
		chunks[i].ID = ChunkID(sourceID, i)
		chunks[i].Metadata = metadataFor(sourceID, i, len(chunks), tags)
	}
	return chunks
}

// ChunkID is stable per source and index, so re-ingesting a file overwrites
// its previous points.
func ChunkID(sourceID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s_%d", sourceID, index))).String()
}

func breakPoint(window []rune) int {
	floor := len(window) * 4 / 5
	for _, sep := range []string{"\n\n", "\n", ". "} {
		if idx := lastIndex(window, []rune(sep)); idx >= floor {
			return idx + len([]rune(sep))
		}
	}
	return len(window)
}

func lastIndex(haystack, needle []rune) int {
	for i := len(haystack) - len(needle); i >= 0; i-- {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func metadataFor(sourceID string, index, count int, tags Tags) domain.DocumentMetadata {
	roles := tags.AccessRoles
	if len(roles) == 0 {
		roles = []domain.UserRole{domain.UserRoleCustomer, domain.UserRoleAssociate}
	}
	visibility := tags.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	var extra map[string]string
	if len(tags.Extra) > 0 {
		extra = make(map[string]string, len(tags.Extra))
		for k, v := range tags.Extra {
			extra[k] = v
		}
	}
	return domain.DocumentMetadata{
		TenantID:      tags.TenantID,
		AccessRoles:   append([]domain.UserRole(nil), roles...),
		Visibility:    visibility,
		KnowledgeBase: tags.KnowledgeBase,
		SourceID:      sourceID,
		ChunkIndex:    index,
		ChunkCount:    count,
		UpdatedAt:     tags.UpdatedAt,
		Extra:         extra,
	}
}
