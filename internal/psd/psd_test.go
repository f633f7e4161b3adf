package psd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwrngqual/internal/fixed"
)

func sineBlock(n int, binFrac float64, amplitude, dc float64) []uint16 {
	block := make([]uint16, n)
	for i := range block {
		v := dc + amplitude*math.Sin(2*math.Pi*binFrac*float64(i))
		block[i] = uint16(v)
	}
	return block
}

func TestAccumulateLinearityAcrossBlocks(t *testing.T) {
	const fftSize = 32
	block := sineBlock(2*fftSize, 0.25, 1000, 2000)

	a1 := New(fftSize)
	a1.Accumulate(block)
	single := append([]fixed.Q1616(nil), a1.Bins()...)

	a3 := New(fftSize)
	a3.Accumulate(block)
	a3.Accumulate(block)
	a3.Accumulate(block)

	for i := range single {
		assert.InDelta(t, 3*single[i].Float64(), a3.Bins()[i].Float64(), single[i].Float64()*0.01+1)
	}
}

func TestBandwidthNarrowForPureSine(t *testing.T) {
	const fftSize = 64
	block := sineBlock(2*fftSize, 0.25, 5000, 30000)
	a := New(fftSize)
	a.Accumulate(block)

	var errs fixed.ErrorContext
	maxBin, bandwidth := a.EstimateBandwidth(fixed.F16(0.5), 2, &errs)
	require.False(t, errs.Occurred())
	assert.InDelta(t, fftSize/2, maxBin, 1)
	assert.Less(t, bandwidth, fftSize/4)
}

func TestAutocorrelatePureSineExceedsFlatNoiseFloor(t *testing.T) {
	const fftSize = 64
	block := sineBlock(2*fftSize, 0.25, 8000, 30000)
	a := New(fftSize)
	a.Accumulate(block)

	correlogram, overflow := a.Autocorrelate()
	require.False(t, overflow)
	require.Len(t, correlogram, fftSize+1)

	var errs fixed.ErrorContext
	maxCorr := FindMaximumAutoCorrelation(correlogram, 4, &errs)
	require.False(t, errs.Occurred())
	assert.Greater(t, maxCorr.Float64(), 0.0)
}
