package tools

import (
	"strings"
	"unicode"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

const titleLimit = 50

// featureKeywords are matched against whole words, so "address" or "renew"
// do not count.
var featureKeywords = map[string]bool{
	"feature": true, "features": true,
	"enhancement": true, "enhancements": true,
	"improve": true, "improvement": true, "improvements": true,
	"add": true, "new": true,
	"request": true, "requests": true,
}

func isFeatureRequest(role domain.UserRole, text string) bool {
	if role != domain.UserRoleAssociate {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if featureKeywords[w] {
			return true
		}
	}
	return false
}

// ShouldCreateTicket reports whether a message warrants a ticket.
func ShouldCreateTicket(intent domain.Intent, role domain.UserRole, text string) bool {
	_, ok := DetermineTicketType(intent, role, text)
	return ok
}

// DetermineTicketType picks the ticket type for a message. Customers never
// get feature requests.
func DetermineTicketType(intent domain.Intent, role domain.UserRole, text string) (domain.TicketType, bool) {
	switch intent {
	case domain.IntentComplaint:
		return domain.TicketTypeComplaint, true
	case domain.IntentServiceRequest:
		return domain.TicketTypeServiceRequest, true
	case domain.IntentQuery:
		if isFeatureRequest(role, text) {
			return domain.TicketTypeFeatureRequest, true
		}
	}
	return "", false
}

// ExtractTitle takes the first sentence of text. Sentences longer than 50
// characters are cut at a word boundary and end with "...".
func ExtractTitle(text string) string {
	first := strings.TrimSpace(strings.SplitN(text, ".", 2)[0])
	if len([]rune(first)) <= titleLimit {
		return first
	}

	var b strings.Builder
	for _, word := range strings.Fields(first) {
		next := len([]rune(word))
		if b.Len() > 0 {
			next++
		}
		if len([]rune(b.String()))+next > titleLimit-3 {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() == 0 {
		return string([]rune(first)[:titleLimit-3]) + "..."
	}
	return b.String() + "..."
}
