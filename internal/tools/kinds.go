// Package tools implements the permissioned actions the reasoning model may
// invoke: ticket creation, complaint validation and knowledge search.
package tools

import (
	"github.com/namanjain27/EchoPilot/internal/domain"
)

// Kind names a tool. The set is closed.
type Kind string

const (
	KindCreateComplaintTicket      Kind = "create_complaint_ticket"
	KindCreateServiceRequestTicket Kind = "create_service_request_ticket"
	KindCreateFeatureRequestTicket Kind = "create_feature_request_ticket"
	KindValidateComplaint          Kind = "validate_complaint"
	KindSearchKnowledgeBase        Kind = "search_knowledge_base"
)

// Kinds lists every tool kind in presentation order.
var Kinds = []Kind{
	KindCreateComplaintTicket,
	KindCreateServiceRequestTicket,
	KindCreateFeatureRequestTicket,
	KindValidateComplaint,
	KindSearchKnowledgeBase,
}

// Definition is the static description of a tool kind.
type Definition struct {
	Kind        Kind
	Description string
	Required    []string
	Properties  map[string]interface{}
}

var ticketProperties = map[string]interface{}{
	"title":       map[string]interface{}{"type": "string", "description": "Short title, at most 50 characters"},
	"description": map[string]interface{}{"type": "string", "description": "Detailed description of the issue or request"},
	"urgency":     map[string]interface{}{"type": "string", "enum": []string{"high", "medium", "low"}},
	"sentiment":   map[string]interface{}{"type": "string", "enum": []string{"positive", "neutral", "negative"}},
	"user_query":  map[string]interface{}{"type": "string", "description": "The user's original message"},
}

var definitions = map[Kind]Definition{
	KindCreateComplaintTicket: {
		Kind:        KindCreateComplaintTicket,
		Description: "Create a complaint ticket for a validated customer complaint about service, billing or product problems.",
		Required:    []string{"title", "description", "urgency", "sentiment", "user_query"},
		Properties:  ticketProperties,
	},
	KindCreateServiceRequestTicket: {
		Kind:        KindCreateServiceRequestTicket,
		Description: "Create a service request ticket for maintenance, relocation, installation or account changes.",
		Required:    []string{"title", "description", "urgency", "user_query"},
		Properties:  ticketProperties,
	},
	KindCreateFeatureRequestTicket: {
		Kind:        KindCreateFeatureRequestTicket,
		Description: "Create a feature request ticket for a product enhancement suggested by an associate.",
		Required:    []string{"title", "description", "urgency", "user_query"},
		Properties:  ticketProperties,
	},
	KindValidateComplaint: {
		Kind:        KindValidateComplaint,
		Description: "Check a complaint against the knowledge base and decide whether it is a legitimate grievance.",
		Required:    []string{"complaint_text"},
		Properties: map[string]interface{}{
			"complaint_text": map[string]interface{}{"type": "string", "description": "The complaint to validate"},
		},
	},
	KindSearchKnowledgeBase: {
		Kind:        KindSearchKnowledgeBase,
		Description: "Search the knowledge base for policies, fees, procedures and product information.",
		Required:    []string{"query"},
		Properties: map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "What to look up"},
		},
	},
}

// Lookup returns the definition of a tool name.
func Lookup(name string) (Definition, bool) {
	def, ok := definitions[Kind(name)]
	return def, ok
}

// Spec renders the definition as a JSON-schema tool spec.
func (d Definition) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        string(d.Kind),
		Description: d.Description,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": d.Properties,
			"required":   d.Required,
		},
	}
}

// TicketType maps a ticket-creating kind to the ticket type it opens.
func (k Kind) TicketType() (domain.TicketType, bool) {
	switch k {
	case KindCreateComplaintTicket:
		return domain.TicketTypeComplaint, true
	case KindCreateServiceRequestTicket:
		return domain.TicketTypeServiceRequest, true
	case KindCreateFeatureRequestTicket:
		return domain.TicketTypeFeatureRequest, true
	default:
		return "", false
	}
}

// KindForTicketType is the inverse of Kind.TicketType.
func KindForTicketType(t domain.TicketType) Kind {
	switch t {
	case domain.TicketTypeComplaint:
		return KindCreateComplaintTicket
	case domain.TicketTypeServiceRequest:
		return KindCreateServiceRequestTicket
	case domain.TicketTypeFeatureRequest:
		return KindCreateFeatureRequestTicket
	default:
		return ""
	}
}

// Caller identifies who a tool runs on behalf of.
type Caller struct {
	TenantID  string
	Role      domain.UserRole
	SessionID string
}
