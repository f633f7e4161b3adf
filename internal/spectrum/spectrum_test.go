package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwrngqual/internal/fixed"
)

func TestForwardConstantSignalHasOnlyDCBin(t *testing.T) {
	const n = 16
	tr := New(n)
	samples := make([]fixed.Q1616, n)
	for i := range samples {
		samples[i] = fixed.FromInt(5)
	}
	var errs fixed.ErrorContext
	bins := tr.Forward(samples, nil, &errs)
	require.False(t, errs.Occurred())
	require.Len(t, bins, n/2+1)
	assert.InDelta(t, 5*n, bins[0].Real.Float64(), 1e-3)
	for i := 1; i < len(bins); i++ {
		assert.InDelta(t, 0, bins[i].Real.Float64(), 1e-3)
		assert.InDelta(t, 0, bins[i].Imag.Float64(), 1e-3)
	}
}

func TestRoundTripWithinQuantizationBound(t *testing.T) {
	const n = 32
	tr := New(n)
	samples := make([]fixed.Q1616, n)
	for i := range samples {
		samples[i] = fixed.F16(1000 * math.Sin(2*math.Pi*float64(i)/8))
	}
	var errs fixed.ErrorContext
	bins := tr.Forward(samples, nil, &errs)
	require.False(t, errs.Occurred())
	back := tr.Inverse(bins, &errs)
	require.False(t, errs.Occurred())
	require.Len(t, back, n)
	for i := range samples {
		assert.InDelta(t, samples[i].Float64(), back[i].Float64(), 0.5)
	}
}
