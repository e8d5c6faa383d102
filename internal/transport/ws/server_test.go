package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/app"
	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

// frame is a superset of every server message.
type frame struct {
	Type      string                  `json:"type"`
	RequestID string                  `json:"request_id"`
	SessionID string                  `json:"session_id"`
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	Summary   string                  `json:"summary"`
	Response  *domain.MessageResponse `json:"response"`
}

func dial(t *testing.T, apiKey string) *websocket.Conn {
	t.Helper()
	cfg := config.Default()
	cfg.MockMode = true
	cfg.DatabaseURL = ":memory:"
	cfg.WebSocket.APIKey = apiKey

	a, err := app.Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	e := echo.New()
	e.GET("/v1/ws", NewServer(a.Service, cfg.WebSocket, nil).HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, msg interface{}) frame {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func hello(tenant string, role domain.UserRole) HelloMessage {
	return HelloMessage{
		BaseMessage: BaseMessage{Type: TypeHello},
		TenantID:    tenant,
		Role:        role,
	}
}

func TestChatOverSocket(t *testing.T) {
	conn := dial(t, "")

	ack := exchange(t, conn, hello("t1", domain.UserRoleCustomer))
	require.Equal(t, TypeHelloAck, ack.Type)
	assert.True(t, strings.HasPrefix(ack.SessionID, "sess_"))

	reply := exchange(t, conn, UserMessage{
		BaseMessage: BaseMessage{Type: TypeUserMessage, RequestID: "r1"},
		Content:     "What are your business hours?",
	})
	require.Equal(t, TypeReply, reply.Type, reply.Message)
	assert.Equal(t, "r1", reply.RequestID)
	require.NotNil(t, reply.Response)
	assert.Equal(t, ack.SessionID, reply.Response.SessionID)
	assert.NotEmpty(t, reply.Response.Reply)

	ended := exchange(t, conn, BaseMessage{Type: TypeEndSession, RequestID: "r2"})
	require.Equal(t, TypeSessionEnded, ended.Type, ended.Message)
	assert.Equal(t, "r2", ended.RequestID)
	assert.Contains(t, ended.Summary, "=== Chat Session (")
}

func TestHelloKeepsRequestedSessionID(t *testing.T) {
	conn := dial(t, "")

	msg := hello("t1", domain.UserRoleAssociate)
	msg.SessionID = "desk-42"
	ack := exchange(t, conn, msg)
	require.Equal(t, TypeHelloAck, ack.Type)
	assert.Equal(t, "desk-42", ack.SessionID)

	again := exchange(t, conn, hello("t1", domain.UserRoleAssociate))
	assert.Equal(t, TypeError, again.Type)
	assert.Equal(t, ErrorCodeInvalidMessage, again.Code)
}

func TestMessagesRequireHello(t *testing.T) {
	conn := dial(t, "")

	f := exchange(t, conn, UserMessage{
		BaseMessage: BaseMessage{Type: TypeUserMessage, RequestID: "r1"},
		Content:     "hi",
	})
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, ErrorCodeSessionRequired, f.Code)
	assert.Equal(t, "r1", f.RequestID)

	f = exchange(t, conn, BaseMessage{Type: TypeEndSession})
	assert.Equal(t, ErrorCodeSessionRequired, f.Code)
}

func TestHelloValidation(t *testing.T) {
	conn := dial(t, "")

	f := exchange(t, conn, hello("", domain.UserRoleCustomer))
	assert.Equal(t, ErrorCodeInvalidMessage, f.Code)

	f = exchange(t, conn, hello("t1", domain.UserRole("guest")))
	assert.Equal(t, ErrorCodeInvalidMessage, f.Code)

	f = exchange(t, conn, BaseMessage{Type: "agent_invoke"})
	assert.Equal(t, ErrorCodeInvalidMessage, f.Code)
	assert.Contains(t, f.Message, "agent_invoke")
}

func TestHelloRequiresAPIKey(t *testing.T) {
	conn := dial(t, "s3cret")

	f := exchange(t, conn, hello("t1", domain.UserRoleCustomer))
	assert.Equal(t, ErrorCodeUnauthorized, f.Code)

	msg := hello("t1", domain.UserRoleCustomer)
	msg.APIKey = "s3cret"
	f = exchange(t, conn, msg)
	assert.Equal(t, TypeHelloAck, f.Type)
}
