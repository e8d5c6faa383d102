package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// Reasoner adapts the LiteLLM client to the engine's message model.
type Reasoner struct {
	client         *Client
	model          string
	embeddingModel string
}

// NewReasoner creates a reasoner for model. embeddingModel may be empty when
// embeddings come from elsewhere.
func NewReasoner(client *Client, model, embeddingModel string) *Reasoner {
	return &Reasoner{client: client, model: model, embeddingModel: embeddingModel}
}

// Complete sends the conversation and returns the assistant reply.
func (r *Reasoner) Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec) (domain.Message, error) {
	req := &ChatCompletionRequest{
		Model:    r.model,
		Messages: toChatMessages(messages),
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Message{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return domain.Message{}, errors.New("no choices in response")
	}
	return fromChatMessage(*resp.Choices[0].Message), nil
}

// Generate runs a single system+user exchange without tools.
func (r *Reasoner) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model: r.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text.
func (r *Reasoner) Embed(ctx context.Context, text string) ([]float32, error) {
	if r.embeddingModel == "" {
		return nil, errors.New("no embedding model configured")
	}
	resp, err := r.client.CreateEmbeddings(ctx, &EmbeddingRequest{Model: r.embeddingModel, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

func toChatMessages(messages []domain.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		cm := ChatMessage{
			Role:       string(m.Role),
			Content:    withAttachments(m),
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args := string(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			cm.ToolCalls = append(cm.ToolCalls, ToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: ToolCallFunction{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, cm)
	}
	return out
}

func withAttachments(m domain.Message) string {
	if len(m.Attachments) == 0 {
		return m.Content
	}
	var sb strings.Builder
	sb.WriteString(m.Content)
	for _, a := range m.Attachments {
		if a.Text == "" {
			continue
		}
		sb.WriteString("\n\n[Attachment: ")
		sb.WriteString(a.Name)
		sb.WriteString("]\n")
		sb.WriteString(a.Text)
	}
	return sb.String()
}

func fromChatMessage(cm ChatMessage) domain.Message {
	msg := domain.Message{
		MessageID: "msg_" + uuid.New().String()[:8],
		Role:      domain.MessageRoleAssistant,
		Content:   cm.Content,
		CreatedAt: time.Now(),
	}
	for _, tc := range cm.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.New().String()[:8]
		}
		args := json.RawMessage(tc.Function.Arguments)
		if strings.TrimSpace(tc.Function.Arguments) == "" {
			args = json.RawMessage("{}")
		} else if !json.Valid(args) {
			// Keep malformed arguments as a JSON string so the executor can
			// report them back to the model.
			args, _ = json.Marshal(tc.Function.Arguments)
		}
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return msg
}
