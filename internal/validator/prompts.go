package validator

import (
	"fmt"
	"strings"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

const reasoningSystemPrompt = `You are a customer service expert analyzing a complaint for validity. Decide whether it is a legitimate complaint or a question/request that the documentation already answers. Respond with JSON only.`

func buildPrompt(complaint string, docs []domain.RetrievedDocument) string {
	var sb strings.Builder
	sb.WriteString("COMPLAINT TO ANALYZE:\n")
	sb.WriteString(complaint)
	sb.WriteString("\n\nRELEVANT DOCUMENTATION:\n")
	sb.WriteString(documentationContext(docs))
	sb.WriteString(`

ANALYSIS CRITERIA:
1. VALID COMPLAINT: service quality issues, billing problems, technical failures, poor customer service, broken features, bugs or other legitimate grievances
2. INVALID COMPLAINT: questions asking for help, tutorials, information already documented, or requests that are not complaints

Respond with a JSON object:
{"is_valid": <bool>, "confidence": <0.0-1.0>, "reasoning": "<why>", "key_factors": ["..."]}`)
	return sb.String()
}

func documentationContext(docs []domain.RetrievedDocument) string {
	if len(docs) == 0 {
		return "No relevant documentation found."
	}
	n := len(docs)
	if n > maxExcerpts {
		n = maxExcerpts
	}
	parts := make([]string, 0, n)
	for i, d := range docs[:n] {
		parts = append(parts, fmt.Sprintf("Document %d (Source: %s):\n%s", i+1, sourceOf(d), preview(d.Content, contextPreview)))
	}
	return strings.Join(parts, "\n\n")
}

// RedirectResponse is the reply for a complaint judged invalid: it points the
// user at the two strongest excerpts, or asks them to rephrase.
func RedirectResponse(result domain.ValidationResult) string {
	if len(result.Excerpts) == 0 {
		return "I understand you're looking for help with this matter. While this appears to be a question rather than a complaint, " +
			"I'd be happy to help you find the information you need. Could you please rephrase your question so I can assist you better?"
	}

	var sb strings.Builder
	sb.WriteString("I see you're looking for assistance with this matter. Based on our documentation, I found some relevant information that might help:\n\n")
	for i, ex := range result.Excerpts {
		if i == 2 {
			break
		}
		sb.WriteString("• ")
		sb.WriteString(ex.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nIf you're experiencing an actual problem or issue with our service, please let me know the specific details " +
		"of what's not working correctly, and I'll be happy to help resolve it.")
	return sb.String()
}
