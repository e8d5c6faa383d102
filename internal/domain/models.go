package domain

import "time"

// IntentAnalysis is the per-message classification result.
type IntentAnalysis struct {
	Intent     Intent               `json:"intent"`
	Urgency    Urgency              `json:"urgency"`
	Sentiment  Sentiment            `json:"sentiment"`
	Confidence float64              `json:"confidence"`
	Method     ClassificationMethod `json:"method"`
}

// DocumentMetadata carries the access tags and ranking features of a chunk.
type DocumentMetadata struct {
	TenantID      string            `json:"tenant_id"`
	AccessRoles   []UserRole        `json:"access_roles"`
	Visibility    Visibility        `json:"document_visibility"`
	KnowledgeBase string            `json:"knowledge_base,omitempty"`
	SourceID      string            `json:"source_id,omitempty"`
	ChunkIndex    int               `json:"chunk_index"`
	ChunkCount    int               `json:"chunk_count,omitempty"`
	Quality       *float64          `json:"quality,omitempty"`
	Recency       *float64          `json:"recency,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// RetrievedDocument is a knowledge chunk returned by retrieval.
type RetrievedDocument struct {
	ID             string           `json:"id"`
	Content        string           `json:"content"`
	Similarity     float64          `json:"similarity"`
	RelevanceScore float64          `json:"relevance_score"`
	Metadata       DocumentMetadata `json:"metadata"`
}

// AccessPredicate is the mandatory retrieval filter for a request.
type AccessPredicate struct {
	TenantID         string     `json:"tenant_id"`
	AllowedRoles     []UserRole `json:"allowed_roles"`
	PublicVisibility Visibility `json:"visibility_clause"`
}

// Excerpt is a knowledge snippet kept as validation evidence.
type Excerpt struct {
	SourceID string  `json:"source_id"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

// ValidationResult is the fused complaint validity decision.
type ValidationResult struct {
	IsValid    bool             `json:"is_valid"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
	Method     ValidationMethod `json:"method"`
	Excerpts   []Excerpt        `json:"excerpts,omitempty"`
}

// Ticket represents a locally tracked unit of support work.
type Ticket struct {
	TicketID          string       `json:"ticket_id"`
	Type              TicketType   `json:"type"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Status            TicketStatus `json:"status"`
	Priority          Urgency      `json:"priority"`
	Sentiment         Sentiment    `json:"sentiment,omitempty"`
	TenantID          string       `json:"tenant_id"`
	UserRole          UserRole     `json:"user_role"`
	SessionID         string       `json:"session_id,omitempty"`
	UserQuery         string       `json:"user_query,omitempty"`
	ExternalReference string       `json:"external_reference,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	ResolvedAt        *time.Time   `json:"resolved_at,omitempty"`
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	TenantID string
	Status   TicketStatus
	Type     TicketType
	Limit    int
}

// TicketSummary counts tickets by status and type.
type TicketSummary struct {
	Total    int                  `json:"total"`
	ByStatus map[TicketStatus]int `json:"by_status"`
	ByType   map[TicketType]int   `json:"by_type"`
}

// TextSegment is a piece of extracted file text with its provenance.
type TextSegment struct {
	Text     string            `json:"text"`
	SourceID string            `json:"source_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DocumentChunk is a bounded piece of a document ready for indexing.
type DocumentChunk struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
	Vector   []float32        `json:"-"`
}
