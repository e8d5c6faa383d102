package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied is returned when a role may not use a tool.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidTransition is returned when a ticket status would move backward.
	ErrInvalidTransition = errors.New("invalid ticket status transition")
	// ErrTicketNotFound is returned when a ticket id is unknown.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrSessionEnded is returned when a turn observes that its session was ended.
	ErrSessionEnded = errors.New("session ended")
	// ErrSessionScope is returned when a session id is reused with another tenant or role.
	ErrSessionScope = errors.New("session belongs to a different tenant or role")
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidRequest is returned when a request is missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// ConfigurationError is a fatal startup problem such as a missing model or credential.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// ExternalCallError wraps a failure of retrieval, reasoning, embedding,
// the ticket system or summary storage.
type ExternalCallError struct {
	Dependency string
	Operation  string
	Timeout    bool
	Cause      error
}

func (e *ExternalCallError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s %s %s", e.Dependency, e.Operation, kind)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Dependency, e.Operation, kind, e.Cause)
}

func (e *ExternalCallError) Unwrap() error { return e.Cause }

// NewExternalCallError builds an ExternalCallError, classifying deadline errors as timeouts.
func NewExternalCallError(dependency, operation string, cause error) *ExternalCallError {
	return &ExternalCallError{
		Dependency: dependency,
		Operation:  operation,
		Timeout:    isTimeout(cause),
		Cause:      cause,
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}

// MalformedToolRequest is a tool invocation the model can correct on its next round.
type MalformedToolRequest struct {
	Tool    string
	Missing []string
	Reason  string
}

func (e *MalformedToolRequest) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing required fields: %s", e.Tool, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Reason)
}
