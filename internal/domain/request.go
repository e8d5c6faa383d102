package domain

// MessageRequest is a user message sent to a session.
type MessageRequest struct {
	SessionID   string       `json:"session_id"`
	TenantID    string       `json:"tenant_id"`
	Role        UserRole     `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// TicketRef identifies a ticket opened during a turn.
type TicketRef struct {
	TicketID          string     `json:"ticket_id"`
	Type              TicketType `json:"type"`
	ExternalReference string     `json:"external_reference,omitempty"`
}

// MessageResponse is the outcome of one turn.
type MessageResponse struct {
	SessionID     string         `json:"session_id"`
	Reply         string         `json:"reply"`
	Intent        IntentAnalysis `json:"intent"`
	TicketCreated *TicketRef     `json:"ticket_created,omitempty"`
	Rounds        int            `json:"rounds"`
	Outcome       string         `json:"outcome"`
}

// EndSessionResponse carries the cumulative summary after a session ends.
type EndSessionResponse struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

// IngestRequest asks for a file to be indexed into the knowledge base.
type IngestRequest struct {
	Path          string            `json:"path"`
	TenantID      string            `json:"tenant_id"`
	AccessRoles   []UserRole        `json:"access_roles"`
	Visibility    Visibility        `json:"visibility"`
	KnowledgeBase string            `json:"knowledge_base,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// IngestResponse reports how many chunks a file produced.
type IngestResponse struct {
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
}

// TicketStatusRequest moves a ticket to a new status.
type TicketStatusRequest struct {
	Status TicketStatus `json:"status"`
}

// SweepResponse reports how many idle sessions were evicted.
type SweepResponse struct {
	Evicted int `json:"evicted"`
}
