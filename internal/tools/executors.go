package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
	"github.com/namanjain27/EchoPilot/internal/tickets"
)

const searchResultLimit = 5

// TicketStore opens local tickets.
type TicketStore interface {
	Create(ctx context.Context, req tickets.NewTicket) (*domain.Ticket, error)
	AttachExternalReference(ctx context.Context, ticketID, ref string) error
}

// IssueCreator mirrors a ticket into the external issue tracker.
type IssueCreator interface {
	CreateIssue(ctx context.Context, ticket *domain.Ticket) (string, error)
}

// Retriever returns access-filtered, ranked knowledge for a caller.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID string, role domain.UserRole, query string) ([]domain.RetrievedDocument, error)
}

// ComplaintValidator judges complaint validity against evidence.
type ComplaintValidator interface {
	Validate(ctx context.Context, complaint string, docs []domain.RetrievedDocument) domain.ValidationResult
}

// TicketArgs are the arguments of every ticket-creating tool.
type TicketArgs struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Urgency     domain.Urgency   `json:"urgency"`
	Sentiment   domain.Sentiment `json:"sentiment,omitempty"`
	UserQuery   string           `json:"user_query"`
}

// ValidateArgs are the arguments of validate_complaint.
type ValidateArgs struct {
	ComplaintText string `json:"complaint_text"`
}

// SearchArgs are the arguments of search_knowledge_base.
type SearchArgs struct {
	Query string `json:"query"`
}

// TicketResult is the successful outcome of a ticket tool. ExternalReference
// is null when the external tracker did not confirm the ticket.
type TicketResult struct {
	Success           bool    `json:"success"`
	LocalTicketID     string  `json:"local_ticket_id"`
	ExternalReference *string `json:"external_reference"`
	Message           string  `json:"message"`
	Warning           string  `json:"warning,omitempty"`
}

// FailureResult reports a tool that ran but could not complete.
type FailureResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Executors implements every tool kind over its collaborators.
type Executors struct {
	tickets   TicketStore
	issues    IssueCreator
	retriever Retriever
	validator ComplaintValidator
	health    *metrics.Health
	log       *logger.Logger
}

// NewExecutors wires the tool implementations. issues may be nil when no
// external tracker is configured.
func NewExecutors(ticketStore TicketStore, issues IssueCreator, retriever Retriever, validator ComplaintValidator, health *metrics.Health, log *logger.Logger) *Executors {
	return &Executors{
		tickets:   ticketStore,
		issues:    issues,
		retriever: retriever,
		validator: validator,
		health:    health,
		log:       log,
	}
}

// Table returns the dispatch table for NewRegistry.
func (e *Executors) Table() map[Kind]ExecutorFunc {
	return map[Kind]ExecutorFunc{
		KindCreateComplaintTicket:      e.ticketExecutor(KindCreateComplaintTicket),
		KindCreateServiceRequestTicket: e.ticketExecutor(KindCreateServiceRequestTicket),
		KindCreateFeatureRequestTicket: e.ticketExecutor(KindCreateFeatureRequestTicket),
		KindValidateComplaint:          e.validateComplaint,
		KindSearchKnowledgeBase:        e.searchKnowledgeBase,
	}
}

func (e *Executors) ticketExecutor(kind Kind) ExecutorFunc {
	ticketType, _ := kind.TicketType()
	return func(ctx context.Context, caller Caller, raw json.RawMessage) (json.RawMessage, error) {
		var args TicketArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, &domain.MalformedToolRequest{Tool: string(kind), Reason: "invalid arguments: " + err.Error()}
		}
		if err := normalizeTicketArgs(kind, &args); err != nil {
			return nil, err
		}
		return e.createTicket(ctx, caller, ticketType, args)
	}
}

func normalizeTicketArgs(kind Kind, args *TicketArgs) error {
	args.Urgency = domain.Urgency(strings.ToLower(strings.TrimSpace(string(args.Urgency))))
	switch args.Urgency {
	case domain.UrgencyHigh, domain.UrgencyMedium, domain.UrgencyLow:
	default:
		return &domain.MalformedToolRequest{Tool: string(kind), Reason: "urgency must be one of high, medium, low"}
	}
	args.Sentiment = domain.Sentiment(strings.ToLower(strings.TrimSpace(string(args.Sentiment))))
	switch args.Sentiment {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
	case "":
		args.Sentiment = domain.SentimentNeutral
	default:
		return &domain.MalformedToolRequest{Tool: string(kind), Reason: "sentiment must be one of positive, neutral, negative"}
	}
	if len([]rune(args.Title)) > titleLimit {
		args.Title = ExtractTitle(args.Title)
	}
	return nil
}

func (e *Executors) createTicket(ctx context.Context, caller Caller, ticketType domain.TicketType, args TicketArgs) (json.RawMessage, error) {
	ticket, err := e.tickets.Create(ctx, tickets.NewTicket{
		Type:        ticketType,
		Title:       args.Title,
		Description: args.Description,
		Priority:    args.Urgency,
		Sentiment:   args.Sentiment,
		TenantID:    caller.TenantID,
		UserRole:    caller.Role,
		SessionID:   caller.SessionID,
		UserQuery:   args.UserQuery,
	})
	if err != nil {
		e.log.Error("local ticket creation failed", "type", ticketType, "error", err)
		return json.Marshal(FailureResult{Error: "failed to create ticket: " + err.Error()})
	}

	result := TicketResult{Success: true, LocalTicketID: ticket.TicketID}
	ref, warning := e.mirror(ctx, ticket)
	if ref != "" {
		result.ExternalReference = &ref
	}
	result.Warning = warning
	result.Message = fmt.Sprintf("%s ticket created successfully. Local ID: %s", ticketLabel(ticketType), ticket.TicketID)
	if ref != "" {
		result.Message += ", External reference: " + ref
	}
	metrics.TicketsCreatedTotal.WithLabelValues(string(ticketType), fmt.Sprintf("%t", ref != "")).Inc()
	return json.Marshal(result)
}

// mirror creates the external issue. A failure leaves the local ticket in
// place and is reported as a warning.
func (e *Executors) mirror(ctx context.Context, ticket *domain.Ticket) (string, string) {
	if e.issues == nil {
		return "", ""
	}
	ref, err := e.issues.CreateIssue(ctx, ticket)
	if err != nil {
		e.health.Failure(metrics.DepTicketing, err)
		e.log.Warn("external ticket creation failed", "ticket_id", ticket.TicketID, "error", err)
		return "", "Ticket saved locally but the external ticket system is unavailable: " + err.Error()
	}
	e.health.Success(metrics.DepTicketing)
	if err := e.tickets.AttachExternalReference(ctx, ticket.TicketID, ref); err != nil {
		e.log.Warn("failed to store external reference", "ticket_id", ticket.TicketID, "error", err)
	}
	ticket.ExternalReference = ref
	return ref, ""
}

func ticketLabel(t domain.TicketType) string {
	switch t {
	case domain.TicketTypeComplaint:
		return "Complaint"
	case domain.TicketTypeServiceRequest:
		return "Service request"
	case domain.TicketTypeFeatureRequest:
		return "Feature request"
	default:
		return "Support"
	}
}

type validateResult struct {
	Success           bool                    `json:"success"`
	IsValid           bool                    `json:"is_valid"`
	Confidence        float64                 `json:"confidence"`
	Method            domain.ValidationMethod `json:"method"`
	Reasoning         string                  `json:"reasoning"`
	RelevantDocuments []domain.Excerpt        `json:"relevant_documents"`
}

func (e *Executors) validateComplaint(ctx context.Context, caller Caller, raw json.RawMessage) (json.RawMessage, error) {
	var args ValidateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &domain.MalformedToolRequest{Tool: string(KindValidateComplaint), Reason: "invalid arguments: " + err.Error()}
	}
	docs, err := e.retriever.Retrieve(ctx, caller.TenantID, caller.Role, args.ComplaintText)
	if err != nil {
		// Validation still runs without evidence.
		e.log.Warn("retrieval for validation failed", "error", err)
		docs = nil
	}
	res := e.validator.Validate(ctx, args.ComplaintText, docs)
	excerpts := res.Excerpts
	if excerpts == nil {
		excerpts = []domain.Excerpt{}
	}
	return json.Marshal(validateResult{
		Success:           true,
		IsValid:           res.IsValid,
		Confidence:        res.Confidence,
		Method:            res.Method,
		Reasoning:         res.Reasoning,
		RelevantDocuments: excerpts,
	})
}

type searchHit struct {
	SourceID       string  `json:"source_id"`
	KnowledgeBase  string  `json:"knowledge_base,omitempty"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
}

type searchResult struct {
	Success   bool        `json:"success"`
	Documents []searchHit `json:"documents"`
	Count     int         `json:"count"`
}

func (e *Executors) searchKnowledgeBase(ctx context.Context, caller Caller, raw json.RawMessage) (json.RawMessage, error) {
	var args SearchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &domain.MalformedToolRequest{Tool: string(KindSearchKnowledgeBase), Reason: "invalid arguments: " + err.Error()}
	}
	docs, err := e.retriever.Retrieve(ctx, caller.TenantID, caller.Role, args.Query)
	if err != nil {
		return json.Marshal(FailureResult{Error: "Search failed: " + err.Error()})
	}

	hits := make([]searchHit, 0, searchResultLimit)
	for i, d := range docs {
		if i == searchResultLimit {
			break
		}
		hits = append(hits, searchHit{
			SourceID:       d.Metadata.SourceID,
			KnowledgeBase:  d.Metadata.KnowledgeBase,
			Content:        d.Content,
			RelevanceScore: d.RelevanceScore,
		})
	}
	return json.Marshal(searchResult{Success: true, Documents: hits, Count: len(docs)})
}
