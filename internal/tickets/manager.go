// Package tickets owns the local ticket lifecycle.
package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/namanjain27/EchoPilot/internal/adapter/events"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
	"github.com/namanjain27/EchoPilot/internal/repository"
)

const idAttempts = 3

// NewTicket carries the fields needed to open a ticket.
type NewTicket struct {
	Type        domain.TicketType
	Title       string
	Description string
	Priority    domain.Urgency
	Sentiment   domain.Sentiment
	TenantID    string
	UserRole    domain.UserRole
	SessionID   string
	UserQuery   string
}

// Manager creates tickets and moves them through
// open -> in_progress -> resolved -> closed.
type Manager struct {
	store     repository.Store
	publisher events.Publisher
	health    *metrics.Health
	log       *logger.Logger
	now       func() time.Time
}

// NewManager creates a ticket manager. A nil publisher disables event publishing.
func NewManager(store repository.Store, publisher events.Publisher, health *metrics.Health, log *logger.Logger) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{store: store, publisher: publisher, health: health, log: log, now: time.Now}
}

// NewTicketID returns "EP-" followed by 8 upper-case hex characters.
func NewTicketID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "EP-" + strings.ToUpper(hex[:8])
}

// Create stores a new open ticket.
func (m *Manager) Create(ctx context.Context, req NewTicket) (*domain.Ticket, error) {
	if req.TenantID == "" {
		return nil, errors.New("ticket tenant_id is required")
	}
	if req.Title == "" || req.Description == "" {
		return nil, errors.New("ticket title and description are required")
	}
	if req.Priority == "" {
		req.Priority = domain.UrgencyMedium
	}

	now := m.now().UTC()
	ticket := &domain.Ticket{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    req.Priority,
		Sentiment:   req.Sentiment,
		TenantID:    req.TenantID,
		UserRole:    req.UserRole,
		SessionID:   req.SessionID,
		UserQuery:   req.UserQuery,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var err error
	for i := 0; i < idAttempts; i++ {
		ticket.TicketID = NewTicketID()
		if err = m.store.CreateTicket(ctx, ticket); err == nil {
			break
		}
		if !strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("failed to create ticket: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to allocate ticket id: %w", err)
	}

	m.log.Info("ticket created", "ticket_id", ticket.TicketID, "type", ticket.Type, "tenant_id", ticket.TenantID)
	m.emit(ctx, ticket, domain.EventTypeTicketCreated, "")
	return ticket, nil
}

// Get returns a ticket or domain.ErrTicketNotFound.
func (m *Manager) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	t, err := m.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if t == nil {
		return nil, domain.ErrTicketNotFound
	}
	return t, nil
}

// List returns tickets matching filter, newest first.
func (m *Manager) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := m.store.ListTickets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// Transition moves a ticket strictly forward. Staying in place or moving back
// returns domain.ErrInvalidTransition.
func (m *Manager) Transition(ctx context.Context, ticketID string, to domain.TicketStatus) (*domain.Ticket, error) {
	if to.Rank() < 0 {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, to)
	}
	current, err := m.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, to)
	}

	now := m.now().UTC()
	var resolvedAt *time.Time
	if to == domain.TicketStatusResolved || to == domain.TicketStatusClosed {
		resolvedAt = &now
	}
	ok, err := m.store.UpdateTicketStatus(ctx, ticketID, current.Status, to, now, resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket status: %w", err)
	}
	if !ok {
		// Another writer moved the ticket since it was read.
		return nil, fmt.Errorf("%w: %s changed concurrently", domain.ErrInvalidTransition, ticketID)
	}

	from := current.Status
	current.Status = to
	current.UpdatedAt = now
	if current.ResolvedAt == nil {
		current.ResolvedAt = resolvedAt
	}
	m.log.Info("ticket status changed", "ticket_id", ticketID, "from", from, "to", to)
	m.emit(ctx, current, domain.EventTypeTicketStatusChanged, from)
	return current, nil
}

// CanTransition reports whether from -> to moves forward in the lifecycle.
func CanTransition(from, to domain.TicketStatus) bool {
	return from.Rank() >= 0 && to.Rank() > from.Rank()
}

// AttachExternalReference records the external issue key. The reference is
// set at most once; later calls are ignored.
func (m *Manager) AttachExternalReference(ctx context.Context, ticketID, ref string) error {
	if ref == "" {
		return nil
	}
	ok, err := m.store.SetTicketExternalReference(ctx, ticketID, ref, m.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to attach external reference: %w", err)
	}
	if !ok {
		if _, err := m.Get(ctx, ticketID); err != nil {
			return err
		}
		m.log.Warn("external reference already set, ignoring", "ticket_id", ticketID, "external_reference", ref)
	}
	return nil
}

// Summary counts tickets per status and type. An empty tenantID counts all tenants.
func (m *Manager) Summary(ctx context.Context, tenantID string) (*domain.TicketSummary, error) {
	s, err := m.store.CountTickets(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	return s, nil
}

type ticketEvent struct {
	TicketID   string              `json:"ticket_id"`
	Type       domain.TicketType   `json:"type"`
	Status     domain.TicketStatus `json:"status"`
	FromStatus domain.TicketStatus `json:"from_status,omitempty"`
	TenantID   string              `json:"tenant_id"`
	Priority   domain.Urgency      `json:"priority"`
}

// emit records the event locally and publishes it. Failures are logged only.
func (m *Manager) emit(ctx context.Context, t *domain.Ticket, eventType domain.EventType, from domain.TicketStatus) {
	payload, err := json.Marshal(ticketEvent{
		TicketID:   t.TicketID,
		Type:       t.Type,
		Status:     t.Status,
		FromStatus: from,
		TenantID:   t.TenantID,
		Priority:   t.Priority,
	})
	if err != nil {
		m.log.Error("failed to marshal ticket event", "error", err)
		return
	}

	event := domain.Event{
		EventID:   "evt_" + uuid.New().String()[:8],
		SessionID: t.SessionID,
		Ts:        m.now().UnixMilli(),
		Type:      eventType,
		Payload:   payload,
	}
	if err := m.store.CreateEvent(ctx, &event); err != nil {
		m.log.Warn("failed to record ticket event", "ticket_id", t.TicketID, "error", err)
	}
	if err := m.publisher.Publish(ctx, t.TicketID, event); err != nil {
		m.health.Failure(metrics.DepEvents, err)
		m.log.Warn("failed to publish ticket event", "ticket_id", t.TicketID, "error", err)
		return
	}
	m.health.Success(metrics.DepEvents)
}
