// Package llm provides the reasoning, generation and embedding clients.
package llm

import (
	"context"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// Completer runs one reasoning step over a conversation, optionally
// requesting tool calls.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec) (domain.Message, error)
}

// Generator produces plain text from a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Ensure the implementations satisfy the interfaces.
var (
	_ Completer = (*Reasoner)(nil)
	_ Generator = (*Reasoner)(nil)
	_ Embedder  = (*Reasoner)(nil)
	_ Generator = (*Gemini)(nil)
	_ Embedder  = (*Gemini)(nil)
	_ Completer = (*MockClient)(nil)
	_ Generator = (*MockClient)(nil)
	_ Embedder  = (*MockClient)(nil)
)
