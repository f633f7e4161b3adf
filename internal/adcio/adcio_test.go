package adcio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedBufferFillsAndReportsFull(t *testing.T) {
	b := NewSimulatedBuffer(256, 32768, 4000, 42)
	assert.False(t, b.Full())
	b.BeginFill()
	require.True(t, b.Full())
	require.Len(t, b.Samples(), 256)
}

func TestConstantBufferAlwaysSameValue(t *testing.T) {
	b := NewConstantBuffer(16, 1234)
	b.BeginFill()
	for _, s := range b.Samples() {
		assert.EqualValues(t, 1234, s)
	}
}

func TestNopPowerControllerDoesNothing(t *testing.T) {
	var p NopPowerController
	assert.NotPanics(t, func() { p.SuppressIdleMode(true) })
}
