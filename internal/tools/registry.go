package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/metrics"
)

// ErrUnknownTool is returned for a tool name outside the closed set.
var ErrUnknownTool = errors.New("unknown tool")

// ExecutorFunc runs a tool for a caller after permission and argument checks.
type ExecutorFunc func(ctx context.Context, caller Caller, args json.RawMessage) (json.RawMessage, error)

// Authorizer decides whether a role may use a tool.
type Authorizer interface {
	Allowed(ctx context.Context, role, tool string) (bool, error)
}

// Registry is the dispatch table from tool kind to executor.
type Registry struct {
	executors map[Kind]ExecutorFunc
	authz     Authorizer
	log       *logger.Logger
}

// NewRegistry builds the dispatch table. Every kind must have an executor.
func NewRegistry(executors map[Kind]ExecutorFunc, authz Authorizer, log *logger.Logger) (*Registry, error) {
	if authz == nil {
		return nil, &domain.ConfigurationError{Field: "policy", Message: "tool authorizer is required"}
	}
	table := make(map[Kind]ExecutorFunc, len(Kinds))
	for _, kind := range Kinds {
		exec := executors[kind]
		if exec == nil {
			return nil, &domain.ConfigurationError{Field: "tools", Message: fmt.Sprintf("no executor registered for %s", kind)}
		}
		table[kind] = exec
	}
	for kind := range executors {
		if _, ok := definitions[kind]; !ok {
			return nil, &domain.ConfigurationError{Field: "tools", Message: fmt.Sprintf("unknown tool kind %s", kind)}
		}
	}
	return &Registry{executors: table, authz: authz, log: log}, nil
}

// Execute checks permission, then required fields, then runs the executor.
// Nothing runs when either check fails.
func (r *Registry) Execute(ctx context.Context, caller Caller, name string, args json.RawMessage) (json.RawMessage, error) {
	def, ok := Lookup(name)
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues("unknown", "unknown_tool").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	allowed, err := r.authz.Allowed(ctx, string(caller.Role), name)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if !allowed {
		metrics.ToolCallsTotal.WithLabelValues(name, "denied").Inc()
		r.log.Warn("tool denied", "tool", name, "role", caller.Role, "tenant_id", caller.TenantID)
		return nil, fmt.Errorf("%w: role %q may not use %s", domain.ErrPermissionDenied, caller.Role, name)
	}

	if err := checkRequired(def, args); err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "malformed").Inc()
		return nil, err
	}

	out, err := r.executors[def.Kind](ctx, caller, args)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		return nil, err
	}
	metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()
	r.log.Info("tool executed", "tool", name, "session_id", caller.SessionID)
	return out, nil
}

// AvailableTools lists the definitions role may use, in presentation order.
func (r *Registry) AvailableTools(ctx context.Context, role domain.UserRole) ([]Definition, error) {
	var out []Definition
	for _, kind := range Kinds {
		allowed, err := r.authz.Allowed(ctx, string(role), string(kind))
		if err != nil {
			return nil, err
		}
		if allowed {
			out = append(out, definitions[kind])
		}
	}
	return out, nil
}

// Specs returns the tool specs offered to the reasoning model for role.
func (r *Registry) Specs(ctx context.Context, role domain.UserRole) ([]domain.ToolSpec, error) {
	defs, err := r.AvailableTools(ctx, role)
	if err != nil {
		return nil, err
	}
	specs := make([]domain.ToolSpec, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, d.Spec())
	}
	return specs, nil
}

func checkRequired(def Definition, args json.RawMessage) error {
	fields := map[string]interface{}{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &fields); err != nil {
			return &domain.MalformedToolRequest{Tool: string(def.Kind), Reason: "arguments must be a JSON object"}
		}
	}
	var missing []string
	for _, f := range def.Required {
		v, ok := fields[f]
		if !ok || v == nil {
			missing = append(missing, f)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &domain.MalformedToolRequest{Tool: string(def.Kind), Missing: missing}
	}
	return nil
}
