// Package main provides a terminal chat client for the support engine's
// WebSocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/transport/ws"
)

// Client represents a WebSocket client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	done      chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello binds the connection to a session and waits for hello_ack.
func (c *Client) SendHello(sessionID, tenantID string, role domain.UserRole, apiKey string) error {
	msg := ws.HelloMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeHello,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
		},
		TenantID: tenantID,
		Role:     role,
		APIKey:   apiKey,
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	// Wait for hello_ack
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if base.Type == ws.TypeError {
		var errMsg ws.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != ws.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.sessionID = base.SessionID
	return nil
}

// SendMessage sends one user message.
func (c *Client) SendMessage(content string) error {
	return c.conn.WriteJSON(ws.UserMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeUserMessage,
			Ts:        time.Now().UnixMilli(),
			SessionID: c.sessionID,
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		},
		Content: content,
	})
}

// SendEnd asks the server to summarize and close the session.
func (c *Client) SendEnd() error {
	return c.conn.WriteJSON(ws.BaseMessage{
		Type:      ws.TypeEndSession,
		Ts:        time.Now().UnixMilli(),
		SessionID: c.sessionID,
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
	})
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			printMessage(data)
		}
	}
}

func printMessage(data []byte) {
	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		log.Printf("Unmarshal error: %v", err)
		return
	}

	switch base.Type {
	case ws.TypeReply:
		var msg ws.ReplyMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Response == nil {
			log.Printf("Malformed reply: %s", string(data))
			return
		}
		resp := msg.Response
		fmt.Printf("\n[%s, %s] %s\n", resp.Intent.Intent, resp.Outcome, resp.Reply)
		if t := resp.TicketCreated; t != nil {
			fmt.Printf("  ticket %s (%s)", t.TicketID, t.Type)
			if t.ExternalReference != "" {
				fmt.Printf(" reference %s", t.ExternalReference)
			}
			fmt.Println()
		}
	case ws.TypeSessionEnded:
		var msg ws.SessionEndedMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\nSession ended. Summary so far:%s\n", msg.Summary)
	case ws.TypeError:
		var msg ws.ErrorMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n[error %s] %s\n", msg.Code, msg.Message)
	default:
		var pretty map[string]interface{}
		json.Unmarshal(data, &pretty)
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n[%s] Received:\n%s\n", base.Type, string(formatted))
	}
	fmt.Print("> ")
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/v1/ws", "WebSocket server address")
	apiKey := flag.String("api-key", "", "API key for authentication")
	tenant := flag.String("tenant", "default", "Tenant ID")
	role := flag.String("role", "customer", "User role (customer or associate)")
	session := flag.String("session", "", "Session ID to resume (generated when empty)")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*session, *tenant, domain.UserRole(*role), *apiKey); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Session established: %s\n", client.sessionID)
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /end to close the session, /quit to exit")

	go client.ReadMessages()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "":
				continue
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/end":
				if err := client.SendEnd(); err != nil {
					log.Printf("Send error: %v", err)
				}
				continue
			}

			if err := client.SendMessage(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
