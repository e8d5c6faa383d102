package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.Info("jira configured", "jira_api_token", "abc", "project", "EP", "headers", map[string]interface{}{"Authorization": "Basic x"})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, redacted, fields["jira_api_token"])
	assert.Equal(t, "EP", fields["project"])
	assert.Equal(t, map[string]interface{}{"Authorization": redacted}, fields["headers"])
}

func TestSanitizeOddKeyValues(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New("development", "not-a-level")
	require.NoError(t, err)
	assert.False(t, l.SugaredLogger.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, l.SugaredLogger.Desugar().Core().Enabled(zap.InfoLevel))
}
