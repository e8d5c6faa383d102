// Package agent runs the reason/act loop of a single turn.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
	"github.com/namanjain27/EchoPilot/internal/tools"
)

var tracer = otel.Tracer("github.com/namanjain27/EchoPilot/internal/agent")

// DefaultMaxRounds bounds the reason steps of one turn.
const DefaultMaxRounds = 6

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeEscalated Outcome = "escalated"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Completer produces the next assistant message.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message, specs []domain.ToolSpec) (domain.Message, error)
}

// ToolRunner executes a named tool for a caller.
type ToolRunner interface {
	Execute(ctx context.Context, caller tools.Caller, name string, args json.RawMessage) (json.RawMessage, error)
}

// Config bounds the loop.
type Config struct {
	MaxRounds     int
	ReasonTimeout time.Duration
	ToolTimeout   time.Duration
}

// Turn is the input of one run of the loop.
type Turn struct {
	Caller   tools.Caller
	Preamble string
	Summary  string
	// Messages is the live conversation, ending with the new user message.
	Messages []domain.Message
	Tools    []domain.ToolSpec
	// Done is closed when the session is ended. It is checked between steps.
	Done <-chan struct{}
}

// ToolOutcome records one executed tool call.
type ToolOutcome struct {
	CallID  string
	Name    string
	Content string
	Err     error
}

// Result is what a turn produced.
type Result struct {
	Reply domain.Message
	// Messages are the messages added during the turn, in order, ending
	// with Reply.
	Messages []domain.Message
	Calls    []ToolOutcome
	Rounds   int
	Outcome  Outcome
}

// Succeeded reports whether a tool of the given kind ran without error.
func (r *Result) Succeeded(kind tools.Kind) bool {
	for _, c := range r.Calls {
		if c.Name == string(kind) && c.Err == nil {
			return true
		}
	}
	return false
}

// Loop alternates REASON and ACT until the model stops calling tools.
type Loop struct {
	completer Completer
	tools     ToolRunner
	cfg       Config
	health    *metrics.Health
	log       *logger.Logger
	now       func() time.Time
}

// New creates a loop.
func New(completer Completer, runner ToolRunner, cfg Config, health *metrics.Health, log *logger.Logger) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	return &Loop{
		completer: completer,
		tools:     runner,
		cfg:       cfg,
		health:    health,
		log:       log,
		now:       time.Now,
	}
}

// Run executes a turn. It returns domain.ErrSessionEnded, together with the
// partial result, when t.Done closes before the turn finishes. Every other
// failure is folded into the reply.
func (l *Loop) Run(ctx context.Context, t Turn) (*Result, error) {
	ctx, span := tracer.Start(ctx, "agent.turn",
		trace.WithAttributes(
			attribute.String("session_id", t.Caller.SessionID),
			attribute.String("tenant_id", t.Caller.TenantID),
			attribute.String("role", string(t.Caller.Role)),
			attribute.Int("tools.offered", len(t.Tools)),
		))
	defer span.End()

	res := &Result{}
	live := append([]domain.Message(nil), t.Messages...)

	defer func() {
		span.SetAttributes(
			attribute.Int("rounds", res.Rounds),
			attribute.String("outcome", string(res.Outcome)),
		)
		metrics.TurnsTotal.WithLabelValues(string(res.Outcome)).Inc()
		metrics.RoundsPerTurn.Observe(float64(res.Rounds))
	}()

	for round := 1; round <= l.cfg.MaxRounds; round++ {
		if ended(t.Done) {
			res.Outcome = OutcomeCancelled
			return res, domain.ErrSessionEnded
		}

		reply, err := l.reason(ctx, round, t, live)
		res.Rounds = round
		if err != nil {
			l.log.Error("reason step failed", "session_id", t.Caller.SessionID, "round", round, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "reason failed")
			l.finish(res, t.Caller.SessionID, ApologyMessage, OutcomeFailed)
			return res, nil
		}

		if !reply.HasToolCalls() {
			res.Messages = append(res.Messages, reply)
			res.Reply = reply
			res.Outcome = OutcomeAnswered
			return res, nil
		}
		if round == l.cfg.MaxRounds {
			// No reason step would read these results.
			break
		}

		live = append(live, reply)
		res.Messages = append(res.Messages, reply)

		if ended(t.Done) {
			res.Outcome = OutcomeCancelled
			return res, domain.ErrSessionEnded
		}

		results, outcomes := l.act(ctx, round, t.Caller, reply.ToolCalls)
		live = append(live, results...)
		res.Messages = append(res.Messages, results...)
		res.Calls = append(res.Calls, outcomes...)
	}

	l.log.Warn("round limit reached, escalating", "session_id", t.Caller.SessionID, "max_rounds", l.cfg.MaxRounds)
	l.finish(res, t.Caller.SessionID, EscalateMessage, OutcomeEscalated)
	return res, nil
}

// Context assembles what the model sees: preamble, then the prior summary,
// then the live messages.
func Context(t Turn, live []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(live)+2)
	out = append(out, domain.Message{Role: domain.MessageRoleSystem, Content: t.Preamble})
	if t.Summary != "" {
		out = append(out, domain.Message{Role: domain.MessageRoleSystem, Content: summaryPrefix + t.Summary})
	}
	return append(out, live...)
}

func (l *Loop) reason(ctx context.Context, round int, t Turn, live []domain.Message) (domain.Message, error) {
	ctx, span := tracer.Start(ctx, "agent.reason", trace.WithAttributes(attribute.Int("round", round)))
	defer span.End()

	if l.cfg.ReasonTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.ReasonTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := l.completer.Complete(ctx, Context(t, live), t.Tools)
	metrics.ExternalCallSeconds.WithLabelValues(metrics.DepLLM).Observe(time.Since(start).Seconds())
	if err != nil {
		l.health.Failure(metrics.DepLLM, err)
		span.RecordError(err)
		return domain.Message{}, domain.NewExternalCallError(metrics.DepLLM, "complete", err)
	}
	l.health.Success(metrics.DepLLM)

	reply.Role = domain.MessageRoleAssistant
	l.stamp(&reply, t.Caller.SessionID)
	span.SetAttributes(attribute.Int("tool_calls", len(reply.ToolCalls)))
	return reply, nil
}

// act runs every call concurrently and returns the tool messages in the
// order the calls were requested.
func (l *Loop) act(ctx context.Context, round int, caller tools.Caller, calls []domain.ToolCall) ([]domain.Message, []ToolOutcome) {
	ctx, span := tracer.Start(ctx, "agent.act",
		trace.WithAttributes(
			attribute.Int("round", round),
			attribute.Int("tool_calls", len(calls)),
		))
	defer span.End()

	outcomes := make([]ToolOutcome, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			outcomes[i] = l.invoke(ctx, caller, call)
			return nil
		})
	}
	_ = g.Wait()

	msgs := make([]domain.Message, len(calls))
	for i, o := range outcomes {
		msgs[i] = domain.Message{
			Role:       domain.MessageRoleTool,
			Name:       o.Name,
			ToolCallID: o.CallID,
			Content:    o.Content,
		}
		l.stamp(&msgs[i], caller.SessionID)
	}
	return msgs, outcomes
}

func (l *Loop) invoke(ctx context.Context, caller tools.Caller, call domain.ToolCall) ToolOutcome {
	ctx, span := tracer.Start(ctx, "agent.tool",
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		))
	defer span.End()

	out := ToolOutcome{CallID: call.ID, Name: call.Name}
	raw, err := l.execute(ctx, caller, call)
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		out.Err = err
		out.Content = UnknownToolText
		l.log.Warn("model requested an unknown tool", "tool", call.Name, "session_id", caller.SessionID)
	case err != nil:
		out.Err = err
		out.Content = fmt.Sprintf("Tool execution failed: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool failed")
		l.log.Warn("tool failed", "tool", call.Name, "session_id", caller.SessionID, "error", err)
	default:
		out.Content = string(raw)
	}
	return out
}

// execute runs one call under the per-call timeout. A tool that ignores its
// context is abandoned when the timeout fires.
func (l *Loop) execute(ctx context.Context, caller tools.Caller, call domain.ToolCall) (json.RawMessage, error) {
	if l.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.ToolTimeout)
		defer cancel()
	}

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		raw, err := l.tools.Execute(ctx, caller, call.Name, call.Arguments)
		done <- result{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		return r.raw, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s timed out: %w", call.Name, ctx.Err())
	}
}

func (l *Loop) finish(res *Result, sessionID, text string, outcome Outcome) {
	reply := domain.Message{Role: domain.MessageRoleAssistant, Content: text}
	l.stamp(&reply, sessionID)
	res.Messages = append(res.Messages, reply)
	res.Reply = reply
	res.Outcome = outcome
}

func (l *Loop) stamp(m *domain.Message, sessionID string) {
	if m.MessageID == "" {
		m.MessageID = "msg_" + uuid.New().String()[:8]
	}
	m.SessionID = sessionID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = l.now()
	}
}

func ended(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
	}
	return false
}
