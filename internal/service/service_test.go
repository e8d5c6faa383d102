package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/adapter/extract"
	"github.com/namanjain27/EchoPilot/internal/adapter/llm"
	"github.com/namanjain27/EchoPilot/internal/adapter/vectorstore"
	"github.com/namanjain27/EchoPilot/internal/agent"
	"github.com/namanjain27/EchoPilot/internal/chunking"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/repository"
	"github.com/namanjain27/EchoPilot/internal/retrieval"
	"github.com/namanjain27/EchoPilot/internal/scoring"
	"github.com/namanjain27/EchoPilot/internal/session"
	"github.com/namanjain27/EchoPilot/internal/summary"
	"github.com/namanjain27/EchoPilot/internal/tickets"
	"github.com/namanjain27/EchoPilot/internal/tools"
	"github.com/namanjain27/EchoPilot/policy"
	"github.com/namanjain27/EchoPilot/tests/helpers"
)

type fixedClassifier struct{ analysis domain.IntentAnalysis }

func (c fixedClassifier) Classify(context.Context, string) domain.IntentAnalysis { return c.analysis }

type fixedValidator struct{ result domain.ValidationResult }

func (v fixedValidator) Validate(context.Context, string, []domain.RetrievedDocument) domain.ValidationResult {
	return v.result
}

// recordingCompleter passes through to the mock model and keeps what it saw.
type recordingCompleter struct {
	mu    sync.Mutex
	inner agent.Completer
	seen  [][]domain.Message
}

func (c *recordingCompleter) Complete(ctx context.Context, m []domain.Message, specs []domain.ToolSpec) (domain.Message, error) {
	c.mu.Lock()
	c.seen = append(c.seen, append([]domain.Message(nil), m...))
	c.mu.Unlock()
	return c.inner.Complete(ctx, m, specs)
}

func (c *recordingCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

type testEnv struct {
	svc       *Service
	db        *repository.SQLiteStore
	index     *vectorstore.Memory
	completer *recordingCompleter
}

type envOptions struct {
	analysis  domain.IntentAnalysis
	validity  domain.ValidationResult
	completer agent.Completer
	ttl       time.Duration
	summaries summary.Store
}

// flakyStore fails every call while down is set.
type flakyStore struct {
	summary.Store
	down atomic.Bool
}

func (f *flakyStore) Load(ctx context.Context, key string) (string, error) {
	if f.down.Load() {
		return "", errors.New("summary store unavailable")
	}
	return f.Store.Load(ctx, key)
}

func (f *flakyStore) Save(ctx context.Context, key, text string) error {
	if f.down.Load() {
		return errors.New("summary store unavailable")
	}
	return f.Store.Save(ctx, key, text)
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()
	db := helpers.NewTestSQLiteStore(t)
	mock := llm.NewMockClient()

	inner := opts.completer
	if inner == nil {
		inner = mock
	}
	completer := &recordingCompleter{inner: inner}

	index := vectorstore.NewMemory()
	engine, err := scoring.New(scoring.DefaultWeights, scoring.DefaultThreshold)
	require.NoError(t, err)
	retriever := retrieval.New(mock, index, engine, 4, time.Second, nil, log)

	val := fixedValidator{result: opts.validity}
	ticketMgr := tickets.NewManager(db, nil, nil, log)
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	executors := tools.NewExecutors(ticketMgr, nil, retriever, val, nil, log)
	registry, err := tools.NewRegistry(executors.Table(), policyEngine, log)
	require.NoError(t, err)

	chunker, err := chunking.New(200, 20)
	require.NoError(t, err)

	ttl := opts.ttl
	if ttl == 0 {
		ttl = time.Hour
	}
	summaries := opts.summaries
	if summaries == nil {
		summaries = summary.NewRepositoryStore(db)
	}

	svc := New(Deps{
		Store:      db,
		Sessions:   session.NewRegistry(ttl),
		Classifier: fixedClassifier{analysis: opts.analysis},
		Retriever:  retriever,
		Validator:  val,
		Tickets:    ticketMgr,
		Tools:      registry,
		Loop:       agent.New(completer, registry, agent.Config{MaxRounds: 4, ToolTimeout: time.Second}, nil, log),
		Summarizer: summary.New(mock, summaries, time.Second, nil, log),
		Ingest:     chunking.NewPipeline(chunker, extract.New(log), mock, index, log),
		Log:        log,
	})
	return &testEnv{svc: svc, db: db, index: index, completer: completer}
}

func queryAnalysis() domain.IntentAnalysis {
	return domain.IntentAnalysis{Intent: domain.IntentQuery, Urgency: domain.UrgencyLow, Sentiment: domain.SentimentNeutral, Confidence: 0.6, Method: domain.ClassificationKeyword}
}

func complaintAnalysis() domain.IntentAnalysis {
	return domain.IntentAnalysis{Intent: domain.IntentComplaint, Urgency: domain.UrgencyHigh, Sentiment: domain.SentimentNegative, Confidence: 0.6, Method: domain.ClassificationKeyword}
}

func message(sessionID, content string) domain.MessageRequest {
	return domain.MessageRequest{SessionID: sessionID, TenantID: "t1", Role: domain.UserRoleCustomer, Content: content}
}

func TestHandleMessageQueryAnswersWithoutTicket(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	resp, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, domain.IntentQuery, resp.Intent.Intent)
	assert.Equal(t, string(agent.OutcomeAnswered), resp.Outcome)
	assert.Equal(t, 2, resp.Rounds)
	assert.True(t, strings.HasPrefix(resp.Reply, "[MOCK] Based on search_knowledge_base"))
	assert.Nil(t, resp.TicketCreated)

	stored, err := env.svc.GetMessages(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, domain.MessageRoleUser, stored[0].Role)
	assert.True(t, stored[1].HasToolCalls())
	assert.Equal(t, domain.MessageRoleTool, stored[2].Role)
	assert.Equal(t, resp.Reply, stored[3].Content)

	list, err := env.svc.ListTickets(ctx, domain.TicketFilter{TenantID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, list)

	events, err := env.svc.GetEvents(ctx, "s1", 0, []string{string(domain.EventTypeTurnDone)}, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHandleMessageValidComplaintOpensTicket(t *testing.T) {
	env := newTestEnv(t, envOptions{
		analysis: complaintAnalysis(),
		validity: domain.ValidationResult{IsValid: true, Confidence: 0.8, Method: domain.ValidationPatternPrimary},
	})
	ctx := context.Background()

	resp, err := env.svc.HandleMessage(ctx, message("s1", "The app crashes every time I pay rent"))
	require.NoError(t, err)
	require.NotNil(t, resp.TicketCreated)
	assert.Equal(t, domain.TicketTypeComplaint, resp.TicketCreated.Type)
	assert.True(t, strings.HasPrefix(resp.TicketCreated.TicketID, "EP-"))
	assert.Contains(t, resp.Reply, "Ticket ID: "+resp.TicketCreated.TicketID)

	ticket, err := env.svc.GetTicket(ctx, resp.TicketCreated.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "The app crashes every time I pay rent", ticket.Title)
	assert.Equal(t, "User query: The app crashes every time I pay rent", ticket.Description)
	assert.Equal(t, domain.UrgencyHigh, ticket.Priority)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "s1", ticket.SessionID)

	// The validation verdict reached the model.
	require.GreaterOrEqual(t, env.completer.calls(), 1)
	assert.Contains(t, env.completer.seen[0][0].Content, "COMPLAINT VALIDATION: valid")
}

func TestHandleMessageInvalidComplaintRedirects(t *testing.T) {
	env := newTestEnv(t, envOptions{
		analysis: complaintAnalysis(),
		validity: domain.ValidationResult{
			IsValid:    false,
			Confidence: 0.9,
			Method:     domain.ValidationAIPrimary,
			Excerpts:   []domain.Excerpt{{SourceID: "fees.md", Content: "A late fee applies after the fifth day."}},
		},
	})
	ctx := context.Background()

	resp, err := env.svc.HandleMessage(ctx, message("s1", "Why was I charged a late fee, this is unfair"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirected, resp.Outcome)
	assert.Contains(t, resp.Reply, "A late fee applies after the fifth day.")
	assert.Nil(t, resp.TicketCreated)
	assert.Zero(t, env.completer.calls(), "a redirected complaint never reaches the reasoning loop")

	summary, err := env.svc.TicketSummary(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
}

// ticketingCompleter opens a service request through the tool, then answers.
type ticketingCompleter struct{}

func (ticketingCompleter) Complete(_ context.Context, m []domain.Message, _ []domain.ToolSpec) (domain.Message, error) {
	last := m[len(m)-1]
	if last.Role == domain.MessageRoleTool {
		return domain.Message{Role: domain.MessageRoleAssistant, Content: "Your request is logged."}, nil
	}
	args, _ := json.Marshal(map[string]string{
		"title":       "Relocate sofa",
		"description": "Move the rented sofa to the new flat",
		"urgency":     "medium",
		"user_query":  last.Content,
	})
	return domain.Message{
		Role:      domain.MessageRoleAssistant,
		ToolCalls: []domain.ToolCall{{ID: "c1", Name: string(tools.KindCreateServiceRequestTicket), Arguments: args}},
	}, nil
}

func TestModelTicketIsNotDuplicated(t *testing.T) {
	env := newTestEnv(t, envOptions{
		analysis:  domain.IntentAnalysis{Intent: domain.IntentServiceRequest, Urgency: domain.UrgencyMedium, Sentiment: domain.SentimentNeutral},
		completer: ticketingCompleter{},
	})
	ctx := context.Background()

	resp, err := env.svc.HandleMessage(ctx, message("s1", "Please relocate my sofa next week"))
	require.NoError(t, err)
	require.NotNil(t, resp.TicketCreated)
	assert.Equal(t, domain.TicketTypeServiceRequest, resp.TicketCreated.Type)
	assert.Equal(t, "Your request is logged.", resp.Reply, "no automatic ticket note when the model already opened one")

	list, err := env.svc.ListTickets(ctx, domain.TicketFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Relocate sofa", list[0].Title)
}

func TestHandleMessageRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	cases := map[string]domain.MessageRequest{
		"no session": {TenantID: "t1", Role: domain.UserRoleCustomer, Content: "hi"},
		"no tenant":  {SessionID: "s1", Role: domain.UserRoleCustomer, Content: "hi"},
		"bad role":   {SessionID: "s1", TenantID: "t1", Role: "admin", Content: "hi"},
		"no content": {SessionID: "s1", TenantID: "t1", Role: domain.UserRoleCustomer, Content: "  "},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.HandleMessage(ctx, req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestSessionScopeIsEnforced(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	_, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)

	other := message("s1", "What are your business hours?")
	other.TenantID = "t2"
	_, err = env.svc.HandleMessage(ctx, other)
	assert.ErrorIs(t, err, domain.ErrSessionScope)

	// The stored row is checked even after the live session is gone.
	_, err = env.svc.EndSession(ctx, "s1")
	require.NoError(t, err)
	_, err = env.svc.HandleMessage(ctx, other)
	assert.ErrorIs(t, err, domain.ErrSessionScope)
	assert.Zero(t, env.svc.sessions.Len())
}

func TestLiveHistoryKeepsFinalAnswersOnly(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	_, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)
	_, err = env.svc.HandleMessage(ctx, message("s1", "Do you deliver on Sundays?"))
	require.NoError(t, err)

	// Third reason call is the first of turn two.
	require.GreaterOrEqual(t, env.completer.calls(), 3)
	sent := env.completer.seen[2]
	var roles []domain.MessageRole
	for _, m := range sent {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []domain.MessageRole{
		domain.MessageRoleSystem,
		domain.MessageRoleUser,
		domain.MessageRoleAssistant,
		domain.MessageRoleUser,
	}, roles)
	assert.Equal(t, "Do you deliver on Sundays?", sent[3].Content)
}

func TestEndSessionArchivesSummary(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	_, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)

	resp, err := env.svc.EndSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Summary, "\n\n=== Chat Session ("))
	assert.Contains(t, resp.Summary, "[MOCK] user query:")
	assert.Zero(t, env.svc.sessions.Len())

	saved, err := env.db.LoadSummary(ctx, "t1:customer")
	require.NoError(t, err)
	assert.Equal(t, resp.Summary, saved)

	again, err := env.svc.EndSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, resp.Summary, again.Summary)

	events, err := env.svc.GetEvents(ctx, "s1", 0, []string{string(domain.EventTypeSessionEnded)}, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// The next session of the same tenant and role sees the summary.
	_, err = env.svc.HandleMessage(ctx, message("s2", "And on holidays?"))
	require.NoError(t, err)
	last := env.completer.seen[len(env.completer.seen)-2]
	require.GreaterOrEqual(t, len(last), 2)
	assert.True(t, strings.HasPrefix(last[1].Content, "Previous chat context: "))
}

func TestEndUnknownSession(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	_, err := env.svc.EndSession(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

// blockingCompleter asks for a tool once released, so the loop reaches the
// ACT boundary after the session was ended.
type blockingCompleter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingCompleter) Complete(context.Context, []domain.Message, []domain.ToolSpec) (domain.Message, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return domain.Message{
		Role:      domain.MessageRoleAssistant,
		ToolCalls: []domain.ToolCall{{ID: "c1", Name: string(tools.KindSearchKnowledgeBase), Arguments: json.RawMessage(`{"query":"sofa"}`)}},
	}, nil
}

func TestEndSessionCancelsInFlightTurn(t *testing.T) {
	bc := &blockingCompleter{started: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnv(t, envOptions{analysis: queryAnalysis(), completer: bc})
	ctx := context.Background()

	turnErr := make(chan error, 1)
	go func() {
		_, err := env.svc.HandleMessage(ctx, message("s1", "Can you move my sofa?"))
		turnErr <- err
	}()
	<-bc.started

	ended := make(chan *domain.EndSessionResponse, 1)
	go func() {
		resp, err := env.svc.EndSession(ctx, "s1")
		if err != nil {
			resp = nil
		}
		ended <- resp
	}()

	require.Eventually(t, func() bool {
		e, ok := env.svc.sessions.Get("s1")
		return ok && e.Ended()
	}, time.Second, 5*time.Millisecond)
	close(bc.release)

	assert.ErrorIs(t, <-turnErr, domain.ErrSessionEnded)
	resp := <-ended
	require.NotNil(t, resp)
	assert.Contains(t, resp.Summary, "=== Chat Session (")

	stored, err := env.svc.GetMessages(ctx, "s1", 0)
	require.NoError(t, err)
	for _, m := range stored {
		assert.NotEqual(t, domain.MessageRoleTool, m.Role, "no tool ran after the session ended")
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis(), ttl: time.Millisecond})
	ctx := context.Background()

	_, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, env.svc.SweepIdle(ctx))
	assert.Zero(t, env.svc.sessions.Len())
	assert.Zero(t, env.svc.SweepIdle(ctx))

	saved, err := env.db.LoadSummary(ctx, "t1:customer")
	require.NoError(t, err)
	assert.Contains(t, saved, "=== Chat Session (")

	events, err := env.svc.GetEvents(ctx, "s1", 0, []string{string(domain.EventTypeSessionEvicted)}, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestArchiveAllEndsLiveSessions(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	_, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)
	_, err = env.svc.HandleMessage(ctx, message("s2", "Do you open on Sundays?"))
	require.NoError(t, err)

	assert.Equal(t, 2, env.svc.ArchiveAll(ctx))
	assert.Zero(t, env.svc.sessions.Len())
	assert.Zero(t, env.svc.ArchiveAll(ctx))

	_, err = env.svc.EndSession(ctx, "s1")
	require.NoError(t, err)
}

func TestFailedSummaryIsRetried(t *testing.T) {
	store := &flakyStore{}
	env := newTestEnv(t, envOptions{analysis: queryAnalysis(), summaries: store})
	store.Store = summary.NewRepositoryStore(env.db)
	ctx := context.Background()

	_, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)

	store.down.Store(true)
	_, err = env.svc.EndSession(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, env.svc.sessions.Len())
	assert.Equal(t, 2, env.svc.PendingMessages("t1:customer"))

	// still down: nothing is lost
	assert.Zero(t, env.svc.RetryPending(ctx))
	assert.Equal(t, 2, env.svc.PendingMessages("t1:customer"))

	store.down.Store(false)
	env.svc.SweepIdle(ctx)
	assert.Zero(t, env.svc.PendingMessages("t1:customer"))

	saved, err := env.db.LoadSummary(ctx, "t1:customer")
	require.NoError(t, err)
	assert.Contains(t, saved, "=== Chat Session (")
}

func TestPendingTranscriptJoinsNextArchive(t *testing.T) {
	store := &flakyStore{}
	env := newTestEnv(t, envOptions{analysis: queryAnalysis(), summaries: store})
	store.Store = summary.NewRepositoryStore(env.db)
	ctx := context.Background()

	_, err := env.svc.HandleMessage(ctx, message("s1", "What are your business hours?"))
	require.NoError(t, err)
	store.down.Store(true)
	_, err = env.svc.EndSession(ctx, "s1")
	require.NoError(t, err)
	store.down.Store(false)

	_, err = env.svc.HandleMessage(ctx, message("s2", "Do you open on Sundays?"))
	require.NoError(t, err)
	resp, err := env.svc.EndSession(ctx, "s2")
	require.NoError(t, err)
	assert.Contains(t, resp.Summary, "=== Chat Session (")
	assert.Zero(t, env.svc.PendingMessages("t1:customer"))
}

func TestTicketTransitions(t *testing.T) {
	env := newTestEnv(t, envOptions{
		analysis: complaintAnalysis(),
		validity: domain.ValidationResult{IsValid: true, Confidence: 0.8, Method: domain.ValidationPatternPrimary},
	})
	ctx := context.Background()

	resp, err := env.svc.HandleMessage(ctx, message("s1", "The app crashes every time I pay rent"))
	require.NoError(t, err)
	require.NotNil(t, resp.TicketCreated)
	id := resp.TicketCreated.TicketID

	ticket, err := env.svc.TransitionTicket(ctx, id, domain.TicketStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	assert.NotNil(t, ticket.ResolvedAt)

	_, err = env.svc.TransitionTicket(ctx, id, domain.TicketStatusInProgress)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.svc.GetTicket(ctx, "EP-00000000")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestListTools(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	customer, err := env.svc.ListTools(ctx, domain.UserRoleCustomer)
	require.NoError(t, err)
	associate, err := env.svc.ListTools(ctx, domain.UserRoleAssociate)
	require.NoError(t, err)
	assert.Len(t, customer, 4)
	assert.Len(t, associate, 5)

	_, err = env.svc.ListTools(ctx, "guest")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestIngestDocument(t *testing.T) {
	env := newTestEnv(t, envOptions{analysis: queryAnalysis()})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "hours.md")
	require.NoError(t, os.WriteFile(path, []byte("Our support desk is open from 9am to 6pm, Monday to Saturday."), 0o644))

	resp, err := env.svc.IngestDocument(ctx, domain.IngestRequest{Path: path, TenantID: "t1", KnowledgeBase: "faq"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Chunks)
	assert.Equal(t, 1, env.index.Len())

	_, err = env.svc.IngestDocument(ctx, domain.IngestRequest{Path: path, TenantID: "t1", Visibility: "internal"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = env.svc.IngestDocument(ctx, domain.IngestRequest{Path: path})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
