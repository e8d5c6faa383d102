// Package ws serves chat sessions over a WebSocket. A connection is bound to
// one session by its hello message; turns then run as user_message requests
// and are answered with reply messages carrying the same request_id.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/namanjain27/EchoPilot/internal/agent"
	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

// Service is the part of the engine a socket drives.
type Service interface {
	HandleMessage(ctx context.Context, req domain.MessageRequest) (*domain.MessageResponse, error)
	EndSession(ctx context.Context, sessionID string) (*domain.EndSessionResponse, error)
}

// Server handles WebSocket connections.
type Server struct {
	svc      Service
	cfg      config.WebSocketConfig
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc Service, cfg config.WebSocketConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	def := config.Default().WebSocket
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	return &Server{
		svc: svc,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// connection is one client socket. The session fields are written once by
// hello, before any turn goroutine starts.
type connection struct {
	ws     *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	turns  sync.WaitGroup

	sessionID string
	tenantID  string
	role      domain.UserRole
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
// GET /v1/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		ws:     ws,
		send:   make(chan []byte, 16),
		ctx:    ctx,
		cancel: cancel,
	}
	if s.cfg.MaxMessageSize > 0 {
		ws.SetReadLimit(s.cfg.MaxMessageSize)
	}

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump reads messages until the client goes away. In-flight turns are
// cancelled and awaited before the send channel is closed.
func (s *Server) readPump(conn *connection) {
	defer func() {
		conn.cancel()
		conn.turns.Wait()
		close(conn.send)
	}()

	conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", "session_id", conn.sessionID, "error", err)
			}
			return
		}
		conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.handleMessage(conn, message)
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (s *Server) writePump(conn *connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.ws.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warn("websocket write failed", "error", err)
				conn.cancel()
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.cancel()
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeUserMessage:
		s.handleUserMessage(conn, data)
	case TypeEndSession:
		s.handleEndSession(conn, base.RequestID)
	default:
		s.sendError(conn, base.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleHello(conn *connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}
	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, msg.RequestID, ErrorCodeUnauthorized, "invalid api_key")
		return
	}
	if conn.sessionID != "" {
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "connection already bound to "+conn.sessionID)
		return
	}
	if strings.TrimSpace(msg.TenantID) == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "tenant_id is required")
		return
	}
	if !msg.Role.Valid() {
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "role must be customer or associate")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}
	conn.sessionID = sessionID
	conn.tenantID = msg.TenantID
	conn.role = msg.Role

	s.sendJSON(conn, HelloAckMessage{BaseMessage: s.base(conn, TypeHelloAck, msg.RequestID)})
	s.log.Info("websocket session bound", "session_id", sessionID, "tenant_id", msg.TenantID, "role", msg.Role)
}

// handleUserMessage runs the turn off the read loop so pings and an
// end_session can still be read while the model works.
func (s *Server) handleUserMessage(conn *connection, data []byte) {
	var msg UserMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid user_message")
		return
	}
	if conn.sessionID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}

	req := domain.MessageRequest{
		SessionID:   conn.sessionID,
		TenantID:    conn.tenantID,
		Role:        conn.role,
		Content:     msg.Content,
		Attachments: msg.Attachments,
	}

	conn.turns.Add(1)
	go func() {
		defer conn.turns.Done()
		resp, err := s.svc.HandleMessage(conn.ctx, req)
		if err != nil {
			s.sendFailure(conn, msg.RequestID, err)
			return
		}
		s.sendJSON(conn, ReplyMessage{
			BaseMessage: s.base(conn, TypeReply, msg.RequestID),
			Response:    resp,
		})
	}()
}

// handleEndSession archives the session. The archive is not tied to the
// connection so a client hanging up right after asking still gets it saved.
func (s *Server) handleEndSession(conn *connection, requestID string) {
	if conn.sessionID == "" {
		s.sendError(conn, requestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}

	conn.turns.Add(1)
	go func() {
		defer conn.turns.Done()
		resp, err := s.svc.EndSession(context.WithoutCancel(conn.ctx), conn.sessionID)
		if err != nil {
			s.sendFailure(conn, requestID, err)
			return
		}
		s.sendJSON(conn, SessionEndedMessage{
			BaseMessage: s.base(conn, TypeSessionEnded, requestID),
			Summary:     resp.Summary,
		})
	}()
}

// sendFailure reports err to the client. Unmapped errors are logged and
// replaced by the apology.
func (s *Server) sendFailure(conn *connection, requestID string, err error) {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		code = ErrorCodeInvalidMessage
	case errors.Is(err, domain.ErrSessionScope):
		code = ErrorCodeForbidden
	case errors.Is(err, domain.ErrSessionEnded):
		code = ErrorCodeSessionEnded
	default:
		s.log.Error("websocket request failed", "session_id", conn.sessionID, "request_id", requestID, "error", err)
		s.sendError(conn, requestID, code, agent.ApologyMessage)
		return
	}
	s.sendError(conn, requestID, code, err.Error())
}

func (s *Server) sendError(conn *connection, requestID, code, message string) {
	s.sendJSON(conn, ErrorMessage{
		BaseMessage: s.base(conn, TypeError, requestID),
		Code:        code,
		Message:     message,
	})
}

func (s *Server) base(conn *connection, typ, requestID string) BaseMessage {
	return BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
		SessionID: conn.sessionID,
	}
}

// sendJSON queues v for the writer. It gives up once the connection is gone.
func (s *Server) sendJSON(conn *connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to encode websocket message", "error", err)
		return
	}
	select {
	case conn.send <- data:
	case <-conn.ctx.Done():
	}
}
