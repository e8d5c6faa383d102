package domain

import (
	"encoding/json"
	"time"
)

// Attachment is extracted content the user sent along with a message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ToolCall is a tool invocation requested by the reasoning model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message represents a single entry in a session transcript.
type Message struct {
	MessageID   string       `json:"message_id"`
	SessionID   string       `json:"session_id"`
	Role        MessageRole  `json:"role"`
	Content     string       `json:"content"`
	Name        string       `json:"name,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolCallID  string       `json:"tool_call_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// HasToolCalls reports whether the message requests any tool invocation.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Session represents a conversation owned by one tenant and role.
type Session struct {
	SessionID    string    `json:"session_id"`
	TenantID     string    `json:"tenant_id"`
	Role         UserRole  `json:"role"`
	Messages     []Message `json:"messages,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// SummaryKey is the key under which the session's cumulative summary is stored.
func (s *Session) SummaryKey() string {
	return SummaryKey(s.TenantID, s.Role)
}

// SummaryKey builds the summary store key for a tenant and role.
func SummaryKey(tenantID string, role UserRole) string {
	return tenantID + ":" + string(role)
}

// Event represents an audit event recorded for a session.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ToolSpec describes a tool to the reasoning model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
