// Package domain defines the core domain models for the support engine.
package domain

// MessageRole represents the author of a message.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// UserRole represents the permission class of the person chatting.
type UserRole string

const (
	UserRoleCustomer  UserRole = "customer"
	UserRoleAssociate UserRole = "associate"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleCustomer || r == UserRoleAssociate
}

// Intent represents the classified purpose of a message.
type Intent string

const (
	IntentQuery          Intent = "query"
	IntentComplaint      Intent = "complaint"
	IntentServiceRequest Intent = "service_request"
)

// Urgency represents how quickly a message needs attention.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Sentiment represents the emotional tone of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ClassificationMethod records which path produced an IntentAnalysis.
type ClassificationMethod string

const (
	ClassificationEmbedding ClassificationMethod = "embedding"
	ClassificationKeyword   ClassificationMethod = "keyword"
)

// ValidationMethod records which signal decided a ValidationResult.
type ValidationMethod string

const (
	ValidationPatternPrimary ValidationMethod = "pattern_primary"
	ValidationAIPrimary      ValidationMethod = "ai_primary"
	ValidationCombined       ValidationMethod = "combined"
)

// TicketType represents the kind of work a ticket tracks.
type TicketType string

const (
	TicketTypeComplaint      TicketType = "complaint"
	TicketTypeServiceRequest TicketType = "service_request"
	TicketTypeFeatureRequest TicketType = "feature_request"
)

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Rank returns the position of s in the forward-only lifecycle, or -1.
func (s TicketStatus) Rank() int {
	switch s {
	case TicketStatusOpen:
		return 0
	case TicketStatusInProgress:
		return 1
	case TicketStatusResolved:
		return 2
	case TicketStatusClosed:
		return 3
	default:
		return -1
	}
}

// Visibility represents who may read a knowledge document.
type Visibility string

const (
	VisibilityPublic  Visibility = "Public"
	VisibilityPrivate Visibility = "Private"
)

// EventType represents the type of an audit event.
type EventType string

const (
	EventTypeTurnStarted         EventType = "turn_started"
	EventTypeIntentClassified    EventType = "intent_classified"
	EventTypeComplaintValidated  EventType = "complaint_validated"
	EventTypeToolResult          EventType = "tool_result"
	EventTypeTurnDone            EventType = "turn_done"
	EventTypeTicketCreated       EventType = "ticket_created"
	EventTypeTicketStatusChanged EventType = "ticket_status_changed"
	EventTypeSessionEnded        EventType = "session_ended"
	EventTypeSessionEvicted      EventType = "session_evicted"
)
