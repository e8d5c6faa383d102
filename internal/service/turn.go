package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/namanjain27/EchoPilot/internal/agent"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/session"
	"github.com/namanjain27/EchoPilot/internal/tools"
	"github.com/namanjain27/EchoPilot/internal/validator"
)

// OutcomeRedirected marks a turn answered by the complaint redirect.
const OutcomeRedirected = "redirected"

const acquireAttempts = 3

// HandleMessage runs one turn for a user message. Turns of one session run
// strictly one after another; different sessions run concurrently.
func (s *Service) HandleMessage(ctx context.Context, req domain.MessageRequest) (*domain.MessageResponse, error) {
	// Validate required fields
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidRequest)
	}
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", domain.ErrInvalidRequest)
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: role must be customer or associate", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidRequest)
	}

	entry, created, err := s.acquire(req)
	if err != nil {
		return nil, err
	}
	defer entry.Unlock()

	if err := s.ensureSession(ctx, entry.Session()); err != nil {
		if created {
			entry.End()
			s.sessions.Remove(entry)
		}
		return nil, err
	}

	sess := entry.Session()
	caller := tools.Caller{TenantID: req.TenantID, Role: req.Role, SessionID: req.SessionID}

	// Save user input message
	userMsg := domain.Message{
		MessageID:   newMessageID(),
		SessionID:   req.SessionID,
		Role:        domain.MessageRoleUser,
		Content:     req.Content,
		Attachments: req.Attachments,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateMessage(ctx, &userMsg); err != nil {
		s.log.Error("failed to save user message", "session_id", req.SessionID, "error", err)
	}
	s.record(ctx, req.SessionID, domain.EventTypeTurnStarted, domain.TurnStartedPayload{
		MessageID: userMsg.MessageID,
		TenantID:  req.TenantID,
		Role:      req.Role,
		Content:   req.Content,
	})

	// Classify and gather knowledge
	analysis := s.classifier.Classify(ctx, req.Content)
	docs, err := s.retriever.Retrieve(ctx, req.TenantID, req.Role, req.Content)
	if err != nil {
		s.log.Warn("retrieval failed, continuing without knowledge", "session_id", req.SessionID, "error", err)
		docs = nil
	}
	s.record(ctx, req.SessionID, domain.EventTypeIntentClassified, domain.IntentClassifiedPayload{
		IntentAnalysis: analysis,
		Documents:      len(docs),
	})

	resp := &domain.MessageResponse{SessionID: req.SessionID, Intent: analysis}

	var validation *domain.ValidationResult
	if analysis.Intent == domain.IntentComplaint {
		v := s.validator.Validate(ctx, req.Content, docs)
		validation = &v
		s.record(ctx, req.SessionID, domain.EventTypeComplaintValidated, domain.ComplaintValidatedPayload{
			IsValid:    v.IsValid,
			Confidence: v.Confidence,
			Method:     v.Method,
		})
		if !v.IsValid {
			reply := s.assistantMessage(req.SessionID, validator.RedirectResponse(v))
			s.persist(ctx, reply)
			s.commit(entry, userMsg, reply)
			resp.Reply = reply.Content
			resp.Outcome = OutcomeRedirected
			s.record(ctx, req.SessionID, domain.EventTypeTurnDone, domain.TurnDonePayload{
				MessageID: reply.MessageID,
				Outcome:   OutcomeRedirected,
			})
			return resp, nil
		}
	}

	specs, err := s.tools.Specs(ctx, req.Role)
	if err != nil {
		s.log.Error("failed to list tools, reasoning without tools", "role", req.Role, "error", err)
		specs = nil
	}

	live := append(append([]domain.Message(nil), sess.Messages...), userMsg)
	res, runErr := s.loop.Run(ctx, agent.Turn{
		Caller:   caller,
		Preamble: agent.Preamble(agent.Briefing{Intent: analysis, Knowledge: docs, Validation: validation}),
		Summary:  s.summarizer.Load(ctx, sess.SummaryKey()),
		Messages: live,
		Tools:    specs,
		Done:     entry.Done(),
	})

	for _, c := range res.Calls {
		payload := domain.ToolResultPayload{ToolCallID: c.CallID, Name: c.Name, Ok: c.Err == nil}
		if c.Err != nil {
			payload.Error = c.Err.Error()
		}
		s.record(ctx, req.SessionID, domain.EventTypeToolResult, payload)
	}

	if errors.Is(runErr, domain.ErrSessionEnded) {
		// Keep the audit trail; the archive that ended the session sees the question.
		s.persist(ctx, res.Messages...)
		sess.Messages = append(sess.Messages, userMsg)
		s.record(ctx, req.SessionID, domain.EventTypeTurnDone, domain.TurnDonePayload{
			Outcome: string(res.Outcome),
			Rounds:  res.Rounds,
		})
		return nil, runErr
	}

	ticket := ticketFromCalls(res.Calls)
	if ticket == nil {
		if ticketType, ok := tools.DetermineTicketType(analysis.Intent, req.Role, req.Content); ok {
			ticket = s.openTicket(ctx, caller, ticketType, analysis, req.Content)
			if ticket != nil {
				res.Reply.Content += ticketNote(ticket)
				res.Messages[len(res.Messages)-1] = res.Reply
			}
		}
	}

	s.persist(ctx, res.Messages...)
	s.commit(entry, userMsg, res.Reply)

	resp.Reply = res.Reply.Content
	resp.Rounds = res.Rounds
	resp.Outcome = string(res.Outcome)
	resp.TicketCreated = ticket

	done := domain.TurnDonePayload{MessageID: res.Reply.MessageID, Outcome: resp.Outcome, Rounds: res.Rounds}
	if ticket != nil {
		done.TicketID = ticket.TicketID
	}
	s.record(ctx, req.SessionID, domain.EventTypeTurnDone, done)
	return resp, nil
}

// acquire returns the locked live entry for the request. An entry that was
// ended while this turn waited for its lock is replaced by a fresh one.
func (s *Service) acquire(req domain.MessageRequest) (*session.Entry, bool, error) {
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		entry, created, err := s.sessions.Acquire(req.SessionID, req.TenantID, req.Role)
		if err != nil {
			return nil, false, err
		}
		entry.Lock()
		if !entry.Ended() {
			return entry, created, nil
		}
		entry.Unlock()
	}
	return nil, false, domain.ErrSessionEnded
}

// ensureSession creates the stored session row on first contact and refreshes
// its activity otherwise. A stored session of another tenant or role is refused.
func (s *Service) ensureSession(ctx context.Context, sess *domain.Session) error {
	stored, err := s.store.GetSession(ctx, sess.SessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	now := s.now()
	if stored == nil {
		if err := s.store.CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	}
	if stored.TenantID != sess.TenantID || stored.Role != sess.Role {
		return domain.ErrSessionScope
	}
	if err := s.store.TouchSession(ctx, sess.SessionID, now); err != nil {
		s.log.Warn("failed to touch session", "session_id", sess.SessionID, "error", err)
	}
	return nil
}

// commit appends the user message and the final reply to the live history.
// Tool traffic stays in the stored transcript only.
func (s *Service) commit(entry *session.Entry, user, reply domain.Message) {
	sess := entry.Session()
	sess.Messages = append(sess.Messages, user, reply)
	sess.LastActivity = s.now()
	s.sessions.Touch(entry)
}

func (s *Service) persist(ctx context.Context, messages ...domain.Message) {
	for i := range messages {
		if err := s.store.CreateMessage(ctx, &messages[i]); err != nil {
			s.log.Error("failed to save message", "message_id", messages[i].MessageID, "role", messages[i].Role, "error", err)
		}
	}
}

func (s *Service) assistantMessage(sessionID, content string) domain.Message {
	return domain.Message{
		MessageID: newMessageID(),
		SessionID: sessionID,
		Role:      domain.MessageRoleAssistant,
		Content:   content,
		CreatedAt: s.now(),
	}
}

// openTicket creates the ticket the message warrants through the tool
// registry, so the role policy and the external mirror apply as they do for
// model-requested tickets.
func (s *Service) openTicket(ctx context.Context, caller tools.Caller, ticketType domain.TicketType, analysis domain.IntentAnalysis, text string) *domain.TicketRef {
	kind := tools.KindForTicketType(ticketType)
	args, err := json.Marshal(tools.TicketArgs{
		Title:       tools.ExtractTitle(text),
		Description: "User query: " + text,
		Urgency:     analysis.Urgency,
		Sentiment:   analysis.Sentiment,
		UserQuery:   text,
	})
	if err != nil {
		s.log.Error("failed to marshal ticket arguments", "error", err)
		return nil
	}
	out, err := s.tools.Execute(ctx, caller, string(kind), args)
	if err != nil {
		s.log.Warn("automatic ticket creation failed", "type", ticketType, "session_id", caller.SessionID, "error", err)
		return nil
	}
	return parseTicketResult(ticketType, out)
}

// ticketFromCalls returns the first ticket a tool opened during the turn.
func ticketFromCalls(calls []agent.ToolOutcome) *domain.TicketRef {
	for _, c := range calls {
		if c.Err != nil {
			continue
		}
		ticketType, ok := tools.Kind(c.Name).TicketType()
		if !ok {
			continue
		}
		if ref := parseTicketResult(ticketType, json.RawMessage(c.Content)); ref != nil {
			return ref
		}
	}
	return nil
}

func parseTicketResult(ticketType domain.TicketType, raw json.RawMessage) *domain.TicketRef {
	var result tools.TicketResult
	if err := json.Unmarshal(raw, &result); err != nil || !result.Success || result.LocalTicketID == "" {
		return nil
	}
	ref := &domain.TicketRef{TicketID: result.LocalTicketID, Type: ticketType}
	if result.ExternalReference != nil {
		ref.ExternalReference = *result.ExternalReference
	}
	return ref
}

func ticketNote(t *domain.TicketRef) string {
	note := fmt.Sprintf("\n\nA %s ticket has been created for you. Ticket ID: %s", strings.ReplaceAll(string(t.Type), "_", " "), t.TicketID)
	if t.ExternalReference != "" {
		note += fmt.Sprintf(" (reference %s)", t.ExternalReference)
	}
	return note
}

func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}
