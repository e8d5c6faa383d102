package internalapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/app"
	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

func setup(t *testing.T) (*echo.Echo, *app.App) {
	t.Helper()
	cfg := config.Default()
	cfg.MockMode = true
	cfg.DatabaseURL = ":memory:"

	a, err := app.Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	e := echo.New()
	NewHandler(a.Service).RegisterRoutes(e)
	return e, a
}

func post(e *echo.Echo, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUpdateTicketStatus(t *testing.T) {
	e, a := setup(t)
	now := time.Now().UTC()
	require.NoError(t, a.Store.CreateTicket(context.Background(), &domain.Ticket{
		TicketID:    "EP-00C0FFEE",
		Type:        domain.TicketTypeServiceRequest,
		Title:       "Reset my password",
		Description: "User query: please reset my password",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.UrgencyMedium,
		TenantID:    "t1",
		UserRole:    domain.UserRoleCustomer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	rec := post(e, "/internal/tickets/EP-00C0FFEE/status", `{"status":"in_progress"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ticket domain.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	rec = post(e, "/internal/tickets/EP-00C0FFEE/status", `{"status":"open"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(e, "/internal/tickets/EP-00C0FFEE/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(e, "/internal/tickets/EP-DEADBEEF/status", `{"status":"resolved"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestDocument(t *testing.T) {
	e, _ := setup(t)

	path := filepath.Join(t.TempDir(), "faq.txt")
	require.NoError(t, os.WriteFile(path, []byte("Our office is open from 9am to 6pm on weekdays."), 0o644))

	body, err := json.Marshal(domain.IngestRequest{
		Path:        path,
		TenantID:    "t1",
		AccessRoles: []domain.UserRole{domain.UserRoleCustomer},
		Visibility:  domain.VisibilityPublic,
	})
	require.NoError(t, err)

	rec := post(e, "/internal/documents", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Chunks)

	rec = post(e, "/internal/documents", `{"path":"`+path+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSweepSessions(t *testing.T) {
	e, _ := setup(t)

	rec := post(e, "/internal/sessions/sweep", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"evicted":0}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	e, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "echopilot_")
}
