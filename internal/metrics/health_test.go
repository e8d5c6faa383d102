package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/namanjain27/EchoPilot/internal/logger"
)

func TestHealthThresholdAndRecovery(t *testing.T) {
	h := NewHealth(2, logger.Nop())
	before := testutil.ToFloat64(DegradedTotal.WithLabelValues(DepLLM))

	h.Failure(DepLLM, errors.New("503"))
	assert.Empty(t, h.Unhealthy())
	h.Failure(DepLLM, errors.New("503"))
	h.Failure(DepTicketing, errors.New("401"))
	assert.Equal(t, []string{DepLLM}, h.Unhealthy())
	assert.Equal(t, before+2, testutil.ToFloat64(DegradedTotal.WithLabelValues(DepLLM)))

	h.Success(DepLLM)
	assert.Empty(t, h.Unhealthy())
}

func TestNilHealthIsNoop(t *testing.T) {
	var h *Health
	h.Failure(DepSummary, errors.New("x"))
	h.Success(DepSummary)
	assert.Nil(t, h.Unhealthy())
}
