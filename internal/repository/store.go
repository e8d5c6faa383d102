// Package repository persists sessions, transcripts, tickets, events and
// cumulative summaries.
package repository

import (
	"context"
	"time"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// Store defines the persistence interface.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	MarkSessionEnded(ctx context.Context, sessionID string, at time.Time) error

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Ticket operations
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, at time.Time, resolvedAt *time.Time) (bool, error)
	SetTicketExternalReference(ctx context.Context, ticketID, ref string, at time.Time) (bool, error)
	CountTickets(ctx context.Context, tenantID string) (*domain.TicketSummary, error)

	// Summary operations
	LoadSummary(ctx context.Context, key string) (string, error)
	SaveSummary(ctx context.Context, key, summary string) error

	Close() error
}
