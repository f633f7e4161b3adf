package firfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwrngqual/internal/fixed"
)

// lowpassCoefficients are the 17-tap kernel from the original firmware
// (calculate_fir_coefficients.m output), in Q16.16.
var lowpassCoefficients = []fixed.Q1616{
	-123, 202, 711, 0, -2681, -2929, 5309, 19161,
	26236,
	19161, 5309, -2929, -2681, 0, 711, 202, -123,
}

func coeffSum() int64 {
	var sum int64
	for _, c := range lowpassCoefficients {
		sum += int64(c)
	}
	return sum
}

func TestConstantInputProducesDCGainApproximately(t *testing.T) {
	const adcSize = 256
	const oversample = 2
	d := NewDecimator(lowpassCoefficients, 8, oversample)

	adc := make([]uint16, adcSize)
	for i := range adc {
		adc[i] = 10000
	}
	out := make([]uint16, d.DecimatedSize(adcSize))
	d.Decimate(adc, out)

	expected := (10000 * coeffSum()) >> 16
	for _, v := range out {
		assert.InDelta(t, float64(expected), float64(v), 1)
	}
}

func TestDecimatedSizeDividesOversampleRatio(t *testing.T) {
	d := NewDecimator(lowpassCoefficients, 8, 2)
	require.Equal(t, 128, d.DecimatedSize(256))
}

func TestCircularIndexingWrapsAtBufferBoundary(t *testing.T) {
	// With FILTER_HALF_ORDER=8 and j=0, base_index = (0 - 8) & mask, which
	// must land inside the buffer rather than going out of bounds.
	const adcSize = 16 // small power of two to exercise wraparound directly
	d := NewDecimator(lowpassCoefficients, 8, 2)
	adc := make([]uint16, adcSize)
	for i := range adc {
		adc[i] = uint16(i + 1)
	}
	out := make([]uint16, d.DecimatedSize(adcSize))
	assert.NotPanics(t, func() {
		d.Decimate(adc, out)
	})
}

func TestRoundingAsymmetryForNegativeExactHalf(t *testing.T) {
	// A single-tap filter with coefficient +0.5 on sample=1 gives an exact
	// sum of +0.5, which the documented rounding rounds up to 1 (away from
	// zero). The same magnitude with coefficient -0.5 gives an exact sum of
	// -0.5, which the same rounding rounds to 0 (toward zero), not -1: the
	// asymmetry spec §9 flags as an open question and this repo preserves.
	positive := NewDecimator([]fixed.Q1616{1 << 15}, 0, 1)
	negative := NewDecimator([]fixed.Q1616{-(1 << 15)}, 0, 1)
	adc := []uint16{1, 0, 0, 0}

	outPos := make([]uint16, positive.DecimatedSize(4))
	positive.Decimate(adc, outPos)
	assert.EqualValues(t, 1, outPos[0])

	outNeg := make([]uint16, negative.DecimatedSize(4))
	negative.Decimate(adc, outNeg)
	assert.EqualValues(t, 0, outNeg[0])
}
