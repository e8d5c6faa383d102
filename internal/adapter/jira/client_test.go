package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

func sampleTicket() *domain.Ticket {
	return &domain.Ticket{
		TicketID:    "EP-1A2B3C4D",
		Type:        domain.TicketTypeComplaint,
		Title:       "The app crashes every time I pay rent",
		Description: "User query: The app crashes every time I pay rent",
		Priority:    domain.UrgencyHigh,
		Sentiment:   domain.SentimentNegative,
		UserRole:    domain.UserRoleCustomer,
	}
}

func TestCreateIssue(t *testing.T) {
	var got createIssueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ops@example.com", user)
		assert.Equal(t, "tok", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"10001","key":"SUP-42","self":"https://jira/rest/api/2/issue/10001"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, Email: "ops@example.com", APIToken: "tok", ProjectKey: "SUP"})
	require.NoError(t, err)

	key, err := c.CreateIssue(context.Background(), sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, "SUP-42", key)

	assert.Equal(t, "SUP", got.Fields.Project.Key)
	assert.Equal(t, "Story", got.Fields.IssueType.Name)
	assert.Equal(t, "The app crashes every time I pay rent", got.Fields.Summary)
	assert.Contains(t, got.Fields.Description, "EP-1A2B3C4D")
	assert.Equal(t, []string{"customer", "complaint", "high", "negative"}, got.Fields.Labels)
}

func TestCreateIssueSurfacesJiraErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages":[],"errors":{"project":"project is required"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, ProjectKey: "SUP"})
	require.NoError(t, err)

	_, err = c.CreateIssue(context.Background(), sampleTicket())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[400]")
	assert.Contains(t, err.Error(), "project is required")
}

func TestLabelsDropEmptyAndSpaces(t *testing.T) {
	ticket := &domain.Ticket{Type: domain.TicketTypeServiceRequest, UserRole: domain.UserRoleAssociate, Priority: "very high"}
	assert.Equal(t, []string{"associate", "service_request", "very_high"}, Labels(ticket))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(Config{URL: "http://jira"})
	var ce *domain.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}
