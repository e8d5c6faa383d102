package domain

// TurnStartedPayload is the payload for turn_started events.
type TurnStartedPayload struct {
	MessageID string   `json:"message_id"`
	TenantID  string   `json:"tenant_id"`
	Role      UserRole `json:"role"`
	Content   string   `json:"content"`
}

// IntentClassifiedPayload is the payload for intent_classified events.
type IntentClassifiedPayload struct {
	IntentAnalysis
	Documents int `json:"documents"`
}

// ComplaintValidatedPayload is the payload for complaint_validated events.
type ComplaintValidatedPayload struct {
	IsValid    bool             `json:"is_valid"`
	Confidence float64          `json:"confidence"`
	Method     ValidationMethod `json:"method"`
}

// ToolResultPayload is the payload for tool_result events.
type ToolResultPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Ok         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// TurnDonePayload is the payload for turn_done events.
type TurnDonePayload struct {
	MessageID string `json:"message_id"`
	Outcome   string `json:"outcome"`
	Rounds    int    `json:"rounds"`
	TicketID  string `json:"ticket_id,omitempty"`
}

// SessionEndedPayload is the payload for session_ended and session_evicted events.
type SessionEndedPayload struct {
	TenantID string   `json:"tenant_id"`
	Role     UserRole `json:"role"`
	Messages int      `json:"messages"`
	Summary  bool     `json:"summary_saved"`
}
