// Package validator decides whether free text is a legitimate complaint or a
// question already answered by the knowledge base.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
)

const (
	maxExcerpts       = 3
	excerptPreview    = 150
	contextPreview    = 300
	lexicalConfidence = 0.6
)

// Generator produces free text from a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Thresholds are the fusion cut-offs.
type Thresholds struct {
	AIPrimary      float64
	PatternPrimary float64
	Combined       float64
}

// DefaultThresholds leans toward treating ambiguous text as a real complaint.
var DefaultThresholds = Thresholds{AIPrimary: 0.7, PatternPrimary: 0.7, Combined: 0.4}

// ReasoningSignal is the evidence-grounded validity estimate.
type ReasoningSignal struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	KeyFactors []string `json:"key_factors,omitempty"`
}

// Validator fuses the pattern and reasoning signals.
type Validator struct {
	generator  Generator
	thresholds Thresholds
	timeout    time.Duration
	health     *metrics.Health
	log        *logger.Logger
}

// New creates a validator. timeout bounds each call to the generator.
func New(generator Generator, thresholds Thresholds, timeout time.Duration, health *metrics.Health, log *logger.Logger) *Validator {
	return &Validator{generator: generator, thresholds: thresholds, timeout: timeout, health: health, log: log}
}

// Validate judges complaint against the supporting documents. It always
// returns a result; internal failures yield a valid verdict with confidence 0.5.
func (v *Validator) Validate(ctx context.Context, complaint string, docs []domain.RetrievedDocument) (result domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("complaint validation panicked", "panic", r)
			result = defaultResult(fmt.Errorf("%v", r))
		}
	}()

	pattern := Pattern(complaint)
	reasoning, err := v.reason(ctx, complaint, docs)
	if err != nil {
		v.health.Failure(metrics.DepLLM, err)
		v.log.Warn("complaint reasoning failed, treating as valid", "error", err)
		return defaultResult(err)
	}
	v.health.Success(metrics.DepLLM)

	result = Fuse(pattern, reasoning, v.thresholds)
	result.Excerpts = excerpts(docs)
	v.log.Debug("complaint validated", "valid", result.IsValid, "confidence", result.Confidence, "method", result.Method)
	return result
}

// Fuse combines the two signals. A confident reasoning signal wins, then a
// confident pattern signal, otherwise a confidence-weighted vote.
func Fuse(a PatternSignal, b ReasoningSignal, th Thresholds) domain.ValidationResult {
	var res domain.ValidationResult
	switch {
	case b.Confidence > th.AIPrimary:
		res.IsValid = b.IsValid
		res.Confidence = b.Confidence
		res.Method = domain.ValidationAIPrimary
	case a.Confidence > th.PatternPrimary:
		res.IsValid = a.IsValid
		res.Confidence = a.Confidence
		res.Method = domain.ValidationPatternPrimary
	default:
		weightB := b.Confidence
		weightA := 1 - weightB
		combined := boolToFloat(b.IsValid)*weightB + boolToFloat(a.IsValid)*weightA
		res.IsValid = combined > th.Combined
		res.Confidence = (a.Confidence + b.Confidence) / 2
		res.Method = domain.ValidationCombined
	}
	res.Confidence = clamp01(res.Confidence)

	var parts []string
	if len(a.ValidIndicators) > 0 {
		parts = append(parts, "Found valid complaint indicators: "+strings.Join(a.ValidIndicators, ", "))
	}
	if len(a.QuestionPatterns) > 0 {
		parts = append(parts, "Found question patterns: "+strings.Join(a.QuestionPatterns, ", "))
	}
	if b.Reasoning != "" {
		parts = append(parts, "AI Analysis: "+b.Reasoning)
	}
	res.Reasoning = "Analysis completed."
	if len(parts) > 0 {
		res.Reasoning = strings.Join(parts, ". ")
	}
	return res
}

func (v *Validator) reason(ctx context.Context, complaint string, docs []domain.RetrievedDocument) (ReasoningSignal, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	out, err := v.generator.Generate(ctx, reasoningSystemPrompt, buildPrompt(complaint, docs))
	if err != nil {
		return ReasoningSignal{}, domain.NewExternalCallError(metrics.DepLLM, "validate_complaint", err)
	}
	return ParseReasoning(out), nil
}

// ParseReasoning reads the model's JSON verdict. Output without a usable JSON
// object falls back to looking for the word "invalid".
func ParseReasoning(out string) ReasoningSignal {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start >= 0 && end > start {
		var raw struct {
			IsValid    *bool    `json:"is_valid"`
			Confidence *float64 `json:"confidence"`
			Reasoning  string   `json:"reasoning"`
			KeyFactors []string `json:"key_factors"`
		}
		if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err == nil {
			sig := ReasoningSignal{IsValid: true, Confidence: 0.5, Reasoning: raw.Reasoning, KeyFactors: raw.KeyFactors}
			if raw.IsValid != nil {
				sig.IsValid = *raw.IsValid
			}
			if raw.Confidence != nil {
				sig.Confidence = clamp01(*raw.Confidence)
			}
			if sig.Reasoning == "" {
				sig.Reasoning = "AI analysis completed"
			}
			return sig
		}
	}

	lower := strings.ToLower(out)
	reasoning := strings.TrimSpace(out)
	if len(reasoning) > 500 {
		reasoning = reasoning[:500]
	}
	return ReasoningSignal{
		IsValid:    !strings.Contains(lower, "invalid") && !strings.Contains(lower, "not valid"),
		Confidence: lexicalConfidence,
		Reasoning:  reasoning,
	}
}

func defaultResult(err error) domain.ValidationResult {
	return domain.ValidationResult{
		IsValid:    true,
		Confidence: 0.5,
		Reasoning:  fmt.Sprintf("Validation error occurred: %v. Treating complaint as valid by default.", err),
		Method:     domain.ValidationCombined,
	}
}

func excerpts(docs []domain.RetrievedDocument) []domain.Excerpt {
	n := len(docs)
	if n > maxExcerpts {
		n = maxExcerpts
	}
	out := make([]domain.Excerpt, 0, n)
	for _, d := range docs[:n] {
		out = append(out, domain.Excerpt{
			SourceID: sourceOf(d),
			Content:  preview(d.Content, excerptPreview),
			Score:    d.RelevanceScore,
		})
	}
	return out
}

func sourceOf(d domain.RetrievedDocument) string {
	if d.Metadata.SourceID != "" {
		return d.Metadata.SourceID
	}
	if d.ID != "" {
		return d.ID
	}
	return "Unknown"
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
