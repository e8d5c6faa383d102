package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Gemini serves plain generation and embeddings through the Gemini API.
type Gemini struct {
	client         *genai.Client
	model          string
	embeddingModel string
	timeout        time.Duration
}

// NewGemini creates a Gemini client authenticated with apiKey. timeout bounds
// every request; zero leaves requests to the caller's context.
func NewGemini(ctx context.Context, apiKey, model, embeddingModel string, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, embeddingModel: embeddingModel, timeout: timeout}, nil
}

func (g *Gemini) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// Generate returns the model's text. An empty reply is not an error.
func (g *Gemini) Generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()
	temp := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return res.Text(), nil
}

// Embed returns the embedding of text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	res, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini returned no embedding")
	}
	return res.Embeddings[0].Values, nil
}
