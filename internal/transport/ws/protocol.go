package ws

import "github.com/namanjain27/EchoPilot/internal/domain"

// Message types from client to server
const (
	TypeHello       = "hello"
	TypeUserMessage = "user_message"
	TypeEndSession  = "end_session"
)

// Message types from server to client
const (
	TypeHelloAck     = "hello_ack"
	TypeReply        = "reply"
	TypeSessionEnded = "session_ended"
	TypeError        = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage binds the connection to a session.
type HelloMessage struct {
	BaseMessage
	TenantID string          `json:"tenant_id"`
	Role     domain.UserRole `json:"role"`
	APIKey   string          `json:"api_key,omitempty"`
}

// HelloAckMessage confirms the binding. SessionID is generated when the
// hello carried none.
type HelloAckMessage struct {
	BaseMessage
}

// UserMessage runs one turn.
type UserMessage struct {
	BaseMessage
	Content     string              `json:"content"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// ReplyMessage carries the outcome of a turn.
type ReplyMessage struct {
	BaseMessage
	Response *domain.MessageResponse `json:"response"`
}

// SessionEndedMessage carries the cumulative summary.
type SessionEndedMessage struct {
	BaseMessage
	Summary string `json:"summary"`
}

// ErrorMessage is sent when a request fails.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeForbidden       = "forbidden"
	ErrorCodeSessionEnded    = "session_ended"
	ErrorCodeInternalError   = "internal_error"
)
