package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_activity DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			name TEXT,
			tool_call_id TEXT,
			tool_calls TEXT,
			attachments TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			ticket_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			priority TEXT NOT NULL,
			sentiment TEXT,
			tenant_id TEXT NOT NULL,
			user_role TEXT NOT NULL,
			session_id TEXT,
			user_query TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_tenant_status ON tickets(tenant_id, status, created_at)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			summary_key TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Columns added after the first schema (SQLite has limited ALTER TABLE support).
	if err := s.ensureColumn("sessions", "ended_at", "ALTER TABLE sessions ADD COLUMN ended_at DATETIME"); err != nil {
		return err
	}
	if err := s.ensureColumn("tickets", "external_reference", "ALTER TABLE tickets ADD COLUMN external_reference TEXT"); err != nil {
		return err
	}
	if err := s.ensureColumn("tickets", "resolved_at", "ALTER TABLE tickets ADD COLUMN resolved_at DATETIME"); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session row. Messages are stored separately.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, tenant_id, role, created_at, last_activity) VALUES (?, ?, ?, ?, ?)`,
		session.SessionID, session.TenantID, session.Role, session.CreatedAt, session.LastActivity)
	return err
}

// GetSession retrieves a session by ID without its messages.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, tenant_id, role, created_at, last_activity FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.TenantID, &session.Role, &session.CreatedAt, &session.LastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// TouchSession records activity on a session.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ?, ended_at = NULL WHERE session_id = ?`,
		at, sessionID)
	return err
}

// MarkSessionEnded stamps the end of a session's active period.
func (s *SQLiteStore) MarkSessionEnded(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		at, sessionID)
	return err
}

// CreateMessage appends a message to a session transcript.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	toolCalls := nullJSON(message.ToolCalls, len(message.ToolCalls) > 0)
	attachments := nullJSON(message.Attachments, len(message.Attachments) > 0)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, role, content, name, tool_call_id, tool_calls, attachments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, message.Role, message.Content,
		nullString(message.Name), nullString(message.ToolCallID), toolCalls, attachments, message.CreatedAt)
	return err
}

// GetMessages retrieves messages for a session in append order.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT message_id, session_id, role, content, name, tool_call_id, tool_calls, attachments, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var name, toolCallID, toolCalls, attachments sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.Role, &msg.Content, &name, &toolCallID, &toolCalls, &attachments, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Name = name.String
		msg.ToolCallID = toolCallID.String
		if toolCalls.Valid {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls of %s: %w", msg.MessageID, err)
			}
		}
		if attachments.Valid {
			if err := json.Unmarshal([]byte(attachments.String), &msg.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments of %s: %w", msg.MessageID, err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, session_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.SessionID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a session.
func (s *SQLiteStore) GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, session_id, ts, type, payload FROM events WHERE session_id = ?`
	args := []interface{}{sessionID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.SessionID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

const ticketColumns = `ticket_id, type, title, description, status, priority, sentiment, tenant_id, user_role,
	session_id, user_query, external_reference, created_at, updated_at, resolved_at`

// CreateTicket inserts a new ticket.
func (s *SQLiteStore) CreateTicket(ctx context.Context, t *domain.Ticket) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (`+ticketColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TicketID, t.Type, t.Title, t.Description, t.Status, t.Priority, nullString(string(t.Sentiment)),
		t.TenantID, t.UserRole, nullString(t.SessionID), nullString(t.UserQuery), nullString(t.ExternalReference),
		t.CreatedAt, t.UpdatedAt, nullTime(t.ResolvedAt))
	return err
}

// GetTicket retrieves a ticket by ID.
func (s *SQLiteStore) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = ?`, ticketID)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTickets lists tickets newest first.
func (s *SQLiteStore) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`
	var args []interface{}
	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY created_at DESC, ticket_id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// UpdateTicketStatus moves a ticket from one status to another. It reports
// false when the ticket was no longer in status from.
func (s *SQLiteStore) UpdateTicketStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, at time.Time, resolvedAt *time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ?, resolved_at = COALESCE(resolved_at, ?)
		 WHERE ticket_id = ? AND status = ?`,
		to, at, nullTime(resolvedAt), ticketID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetTicketExternalReference records the external issue key once. It reports
// false when a reference was already present.
func (s *SQLiteStore) SetTicketExternalReference(ctx context.Context, ticketID, ref string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET external_reference = ?, updated_at = ?
		 WHERE ticket_id = ? AND (external_reference IS NULL OR external_reference = '')`,
		ref, at, ticketID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountTickets aggregates tickets by status and type, optionally per tenant.
func (s *SQLiteStore) CountTickets(ctx context.Context, tenantID string) (*domain.TicketSummary, error) {
	query := `SELECT status, type, COUNT(*) FROM tickets`
	var args []interface{}
	if tenantID != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` GROUP BY status, type`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &domain.TicketSummary{
		ByStatus: make(map[domain.TicketStatus]int),
		ByType:   make(map[domain.TicketType]int),
	}
	for rows.Next() {
		var status domain.TicketStatus
		var typ domain.TicketType
		var n int
		if err := rows.Scan(&status, &typ, &n); err != nil {
			return nil, err
		}
		summary.Total += n
		summary.ByStatus[status] += n
		summary.ByType[typ] += n
	}
	return summary, rows.Err()
}

// LoadSummary returns the cumulative summary for key, or "" when none exists.
func (s *SQLiteStore) LoadSummary(ctx context.Context, key string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM summaries WHERE summary_key = ?`, key).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return summary, err
}

// SaveSummary replaces the cumulative summary for key.
func (s *SQLiteStore) SaveSummary(ctx context.Context, key, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (summary_key, summary, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(summary_key) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		key, summary, time.Now())
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var sentiment, sessionID, userQuery, externalRef sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(&t.TicketID, &t.Type, &t.Title, &t.Description, &t.Status, &t.Priority, &sentiment,
		&t.TenantID, &t.UserRole, &sessionID, &userQuery, &externalRef, &t.CreatedAt, &t.UpdatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	t.Sentiment = domain.Sentiment(sentiment.String)
	t.SessionID = sessionID.String
	t.UserQuery = userQuery.String
	t.ExternalReference = externalRef.String
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullJSON(v interface{}, present bool) sql.NullString {
	if !present {
		return sql.NullString{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
