// Package policy evaluates role permissions for tools with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
// The module must define data.tool_policy.allow.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.allow"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Allowed reports whether role may invoke tool.
func (e *Engine) Allowed(ctx context.Context, role, tool string) (bool, error) {
	input := map[string]interface{}{
		"role":      role,
		"tool_name": tool,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// An undefined decision denies.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", results[0].Expressions[0].Value)
	}
	return allowed, nil
}

// DefaultPolicy grants customers the ticketing, validation and search tools
// and associates everything, including feature requests.
const DefaultPolicy = `
package tool_policy

default allow = false

customer_tools = {
	"create_complaint_ticket",
	"create_service_request_ticket",
	"validate_complaint",
	"search_knowledge_base",
}

associate_tools = customer_tools | {"create_feature_request_ticket"}

allow {
	input.role == "customer"
	customer_tools[input.tool_name]
}

allow {
	input.role == "associate"
	associate_tools[input.tool_name]
}
`
