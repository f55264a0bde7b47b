package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledMetricsAreSafe(t *testing.T) {
	m, err := Init(context.Background(), Config{})
	require.NoError(t, err)

	// all recorders must be callable on the no-op value
	m.RecordNegotiation(context.Background(), "agent-beta", true, false, 2, time.Second)
	m.RecordTransport(context.Background(), "http://peer", time.Millisecond, nil)
	m.RecordToolCall(context.Background(), "requestBooking", time.Millisecond, true)
	m.RecordLLM(context.Background(), "model", 10, nil)
}

func TestEnabledMetricsRecord(t *testing.T) {
	m, err := Init(context.Background(), Config{Enabled: true})
	require.NoError(t, err)
	assert.True(t, m.enabled)

	m.RecordNegotiation(context.Background(), "agent-beta", false, true, 3, 2*time.Second)
	m.RecordTransport(context.Background(), "http://peer", 50*time.Millisecond, assert.AnError)
	m.RecordToolCall(context.Background(), "cancelEvent", time.Millisecond, false)
	m.RecordLLM(context.Background(), "model", 42, assert.AnError)

	assert.NotNil(t, m.Handler())
}
