package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	cases := []struct {
		role, tool string
		want       bool
	}{
		{"customer", "create_complaint_ticket", true},
		{"customer", "create_service_request_ticket", true},
		{"customer", "validate_complaint", true},
		{"customer", "search_knowledge_base", true},
		{"customer", "create_feature_request_ticket", false},
		{"associate", "create_feature_request_ticket", true},
		{"associate", "search_knowledge_base", true},
		{"associate", "delete_everything", false},
		{"admin", "search_knowledge_base", false},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.tool, func(t *testing.T) {
			got, err := engine.Allowed(ctx, tc.role, tc.tool)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewEngineRejectsBadModule(t *testing.T) {
	_, err := NewEngine(context.Background(), "package tool_policy\nallow {")
	assert.Error(t, err)
}

func TestNonBooleanDecision(t *testing.T) {
	engine, err := NewEngine(context.Background(), "package tool_policy\nallow = \"yes\"")
	require.NoError(t, err)
	_, err = engine.Allowed(context.Background(), "customer", "x")
	assert.Error(t, err)
}
