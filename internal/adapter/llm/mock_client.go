package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

const mockDimensions = 64

// MockClient is a deterministic offline implementation of every client
// interface, used in mock mode and tests.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Complete searches the knowledge base once per user message when the tool is
// offered, then answers from the tool output.
func (m *MockClient) Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	reply := domain.Message{
		MessageID: fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Role:      domain.MessageRoleAssistant,
		CreatedAt: time.Now(),
	}
	if len(messages) == 0 {
		reply.Content = "[MOCK] This is a mock response from the LLM client."
		return reply, nil
	}

	last := messages[len(messages)-1]
	switch {
	case last.Role == domain.MessageRoleUser && offers(tools, "search_knowledge_base"):
		args, _ := json.Marshal(map[string]string{"query": last.Content})
		reply.ToolCalls = []domain.ToolCall{{
			ID:        fmt.Sprintf("call_mock_%d", len(messages)),
			Name:      "search_knowledge_base",
			Arguments: args,
		}}
	case last.Role == domain.MessageRoleTool:
		reply.Content = fmt.Sprintf("[MOCK] Based on %s: %s", last.Name, truncate(last.Content, 200))
	default:
		reply.Content = fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(last.Content, 100))
	}
	return reply, nil
}

// Generate answers validation prompts with a JSON verdict and everything else
// with a short summary line.
func (m *MockClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.Contains(prompt, "COMPLAINT TO ANALYZE") {
		return `{"is_valid": true, "confidence": 0.6, "reasoning": "[MOCK] treated as a genuine complaint"}`, nil
	}
	return "[MOCK] user query: " + truncate(firstLine(prompt), 80) + ", AI response: handled. Grade: B", nil
}

// Embed hashes words into a fixed-size normalized vector so that texts sharing
// vocabulary are close.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, mockDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%mockDimensions]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

func offers(tools []domain.ToolSpec, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate keeps the first maxLen runes of s.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
