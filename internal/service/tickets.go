package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/namanjain27/EchoPilot/internal/chunking"
	"github.com/namanjain27/EchoPilot/internal/domain"
)

func (s *Service) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.tickets.Get(ctx, ticketID)
}

func (s *Service) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, filter)
}

func (s *Service) TicketSummary(ctx context.Context, tenantID string) (*domain.TicketSummary, error) {
	return s.tickets.Summary(ctx, tenantID)
}

// TransitionTicket moves a ticket forward in its lifecycle.
func (s *Service) TransitionTicket(ctx context.Context, ticketID string, to domain.TicketStatus) (*domain.Ticket, error) {
	return s.tickets.Transition(ctx, ticketID, to)
}

// ListTools returns the tool specs role may use.
func (s *Service) ListTools(ctx context.Context, role domain.UserRole) ([]domain.ToolSpec, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be customer or associate", domain.ErrInvalidRequest)
	}
	specs, err := s.tools.Specs(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return specs, nil
}

// IngestDocument indexes a file into the tenant's knowledge base.
func (s *Service) IngestDocument(ctx context.Context, req domain.IngestRequest) (*domain.IngestResponse, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", domain.ErrInvalidRequest)
	}
	for _, r := range req.AccessRoles {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: unknown access role %q", domain.ErrInvalidRequest, r)
		}
	}
	switch req.Visibility {
	case "", domain.VisibilityPublic, domain.VisibilityPrivate:
	default:
		return nil, fmt.Errorf("%w: visibility must be Public or Private", domain.ErrInvalidRequest)
	}

	n, err := s.ingest.IngestFile(ctx, req.Path, chunking.Tags{
		TenantID:      req.TenantID,
		AccessRoles:   req.AccessRoles,
		Visibility:    req.Visibility,
		KnowledgeBase: req.KnowledgeBase,
		UpdatedAt:     req.UpdatedAt,
		Extra:         req.Extra,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest %s: %w", req.Path, err)
	}
	return &domain.IngestResponse{Path: req.Path, Chunks: n}, nil
}
