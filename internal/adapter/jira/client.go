// Package jira mirrors tickets into Jira through the REST v2 API.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// DefaultIssueType is used when no issue type is configured.
const DefaultIssueType = "Story"

// Config holds the Jira connection settings.
type Config struct {
	URL        string
	Email      string
	APIToken   string
	ProjectKey string
	IssueType  string
	Timeout    time.Duration
}

// Client creates Jira issues.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Jira client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &domain.ConfigurationError{Field: "jira.url", Message: "is required"}
	}
	if strings.TrimSpace(cfg.ProjectKey) == "" {
		return nil, &domain.ConfigurationError{Field: "jira.project_key", Message: "is required"}
	}
	if cfg.IssueType == "" {
		cfg.IssueType = DefaultIssueType
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// IssueFields is the "fields" object of a create-issue request.
type IssueFields struct {
	Project     ProjectRef   `json:"project"`
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	IssueType   IssueTypeRef `json:"issuetype"`
	Labels      []string     `json:"labels"`
}

type ProjectRef struct {
	Key string `json:"key"`
}

type IssueTypeRef struct {
	Name string `json:"name"`
}

type createIssueRequest struct {
	Fields IssueFields `json:"fields"`
}

type createIssueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// CreateIssue creates an issue for ticket and returns its key.
func (c *Client) CreateIssue(ctx context.Context, ticket *domain.Ticket) (string, error) {
	if ticket == nil {
		return "", fmt.Errorf("ticket is required")
	}
	req := createIssueRequest{Fields: c.Fields(ticket)}
	var resp createIssueResponse
	if err := c.post(ctx, "/rest/api/2/issue", req, &resp); err != nil {
		return "", err
	}
	if resp.Key == "" {
		return "", fmt.Errorf("jira returned no issue key")
	}
	return resp.Key, nil
}

// Fields builds the issue fields for ticket. Labels carry the user role,
// ticket type, urgency and sentiment so the tracker can be filtered on them.
func (c *Client) Fields(ticket *domain.Ticket) IssueFields {
	description := ticket.Description
	if ticket.TicketID != "" {
		description = fmt.Sprintf("%s\n\nEchoPilot ticket: %s", description, ticket.TicketID)
	}
	return IssueFields{
		Project:     ProjectRef{Key: c.cfg.ProjectKey},
		Summary:     ticket.Title,
		Description: description,
		IssueType:   IssueTypeRef{Name: c.cfg.IssueType},
		Labels:      Labels(ticket),
	}
}

// Labels returns the Jira labels for ticket. Jira labels cannot contain
// spaces.
func Labels(ticket *domain.Ticket) []string {
	raw := []string{
		string(ticket.UserRole),
		string(ticket.Type),
		string(ticket.Priority),
		string(ticket.Sentiment),
	}
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.Join(strings.Fields(l), "_")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			if msg := errResp.message(); msg != "" {
				return fmt.Errorf("jira API error [%d]: %s", resp.StatusCode, msg)
			}
		}
		return fmt.Errorf("jira API error [%d]: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (e errorResponse) message() string {
	parts := append([]string(nil), e.ErrorMessages...)
	for field, msg := range e.Errors {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}
