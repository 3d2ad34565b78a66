package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Captured("messaging", false)
	m.Captured("messaging", true)
	m.Captured("messaging", true)
	m.Suppressed("messaging")
	m.DegradedOp("emit")
	m.OutboxFailed()
	m.HookFailed()
	m.PolicyLoad(false)
	m.ObserveQuery("timeline", 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsCaptured.WithLabelValues("messaging", "persistent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsCaptured.WithLabelValues("messaging", "memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsSuppressed.WithLabelValues("messaging")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CaptureLoads.WithLabelValues("error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Captured("x", false)
		m.Suppressed("x")
		m.DegradedOp("x")
		m.OutboxFailed()
		m.HookFailed()
		m.PolicyLoad(true)
		m.ObserveQuery("x", 1)
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "console")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
}
