package intent

import "github.com/namanjain27/EchoPilot/internal/domain"

// intentOrder fixes tie-breaking between intents.
var intentOrder = []domain.Intent{domain.IntentQuery, domain.IntentComplaint, domain.IntentServiceRequest}

var intentExamples = map[domain.Intent][]string{
	domain.IntentQuery: {
		"What are your business hours?",
		"How do I reset my password?",
		"Can you explain this feature?",
		"What's the difference between these plans?",
		"How does billing work?",
		"Where can I find documentation?",
		"What integrations do you support?",
		"How do I contact support?",
		"What's your refund policy?",
		"Can you help me understand this error?",
	},
	domain.IntentComplaint: {
		"This feature is broken and doesn't work",
		"I'm very disappointed with your service",
		"The application crashes constantly",
		"Your support team is unhelpful",
		"This is the worst experience I've had",
		"Nothing works as advertised",
		"I'm frustrated with these bugs",
		"Your product is unreliable",
		"I want to file a complaint",
		"This is completely unacceptable",
	},
	domain.IntentServiceRequest: {
		"I need help setting up my account",
		"Can you help me configure this feature?",
		"I'd like to request a feature enhancement",
		"Please help me troubleshoot this issue",
		"I need assistance with integration",
		"Can you provide training materials?",
		"I want to upgrade my plan",
		"Please help me recover my data",
		"I need technical support",
		"Can you schedule a demo?",
	},
}

var (
	complaintKeywords = []string{
		"complaint", "problem", "issue", "bug", "error", "wrong", "failed", "broken",
		"frustrated", "disappointed", "crash", "not working",
	}
	serviceKeywords = []string{
		"request", "need", "want", "help", "support", "service", "assistance", "configure", "setup",
	}
)

// urgencyOrder is checked first to last; the first level with a hit wins.
var urgencyOrder = []domain.Urgency{domain.UrgencyHigh, domain.UrgencyMedium, domain.UrgencyLow}

var urgencyKeywords = map[domain.Urgency][]string{
	domain.UrgencyHigh: {
		"urgent", "emergency", "critical", "immediately", "asap",
		"system down", "not working", "broken", "crisis", "blocking",
	},
	domain.UrgencyMedium: {
		"soon", "quickly", "when possible", "priority", "important",
		"affecting users", "needs attention", "moderately urgent",
	},
	domain.UrgencyLow: {
		"whenever", "no rush", "low priority", "eventually", "minor",
		"nice to have", "future", "suggestion", "improvement",
	},
}

// contextualMedium words raise urgency to medium when no explicit level matched.
var contextualMedium = []string{"help", "issue", "problem", "error"}

var (
	positiveWords = []string{
		"great", "excellent", "amazing", "love", "perfect", "wonderful",
		"fantastic", "awesome", "satisfied", "happy", "pleased", "good",
	}
	negativeWords = []string{
		"terrible", "awful", "hate", "worst", "horrible", "frustrated",
		"angry", "disappointed", "bad", "broken", "useless", "annoying",
	}
)
