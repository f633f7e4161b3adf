// Package psd accumulates a running power spectral density estimate across
// blocks of filtered samples, and derives bandwidth and autocorrelation
// statistics from it (spec §4.3-4.5).
package psd

import (
	"hwrngqual/internal/fixed"
	"hwrngqual/internal/spectrum"
)

// Accumulator holds a running sum of |Xₖ|² across multiple FFT blocks, plus
// a sticky overflow flag (spec §3 "PSD accumulator").
type Accumulator struct {
	fftSize int
	tr      *spectrum.Transformer
	bins    []fixed.Q1616 // length fftSize+1
	overflow bool
}

// New returns an Accumulator for blocks of 2*fftSize real samples, producing
// fftSize+1 PSD bins per block.
func New(fftSize int) *Accumulator {
	return &Accumulator{
		fftSize: fftSize,
		tr:      spectrum.New(2 * fftSize),
		bins:    make([]fixed.Q1616, fftSize+1),
	}
}

// Clear zeros all bins and the overflow flag.
func (a *Accumulator) Clear() {
	for i := range a.bins {
		a.bins[i] = 0
	}
	a.overflow = false
}

// OverflowOccurred reports whether accumulation has saturated a bin.
func (a *Accumulator) OverflowOccurred() bool {
	return a.overflow
}

// Bins returns the accumulated PSD bins (read-only view).
func (a *Accumulator) Bins() []fixed.Q1616 {
	return a.bins
}

// FFTSize returns the configured FFT size (bins has FFTSize+1 entries).
func (a *Accumulator) FFTSize() int { return a.fftSize }

// Accumulate takes a block of 2*fftSize real samples, performs the real FFT,
// and adds |Xₖ|² into bin k for k in [0, fftSize], setting the overflow flag
// on saturation.
func (a *Accumulator) Accumulate(block []uint16) {
	samples := make([]fixed.Q1616, len(block))
	for i, s := range block {
		samples[i] = fixed.FromInt(int(s))
	}
	var errs fixed.ErrorContext
	bins := a.tr.Forward(samples, nil, &errs)
	for k, c := range bins {
		mag := c.Real.Mul(c.Real, &errs).Add(c.Imag.Mul(c.Imag, &errs), &errs)
		a.bins[k] = a.bins[k].Add(mag, &errs)
	}
	if errs.Occurred() {
		a.overflow = true
	}
}

// EstimateBandwidth finds the peak bin and the bandwidth around it, in FFT
// bins, per spec §4.5. thresholdRatio is PSD_BANDWIDTH_THRESHOLD and
// repetitions is PSD_THRESHOLD_REPETITIONS.
func (a *Accumulator) EstimateBandwidth(thresholdRatio fixed.Q1616, repetitions int, errs *fixed.ErrorContext) (maxBin, bandwidth int) {
	var peak fixed.Q1616
	for i, v := range a.bins {
		if v > peak {
			peak = v
			maxBin = i
		}
	}
	threshold := peak.Mul(thresholdRatio, errs)

	left := 0
	below := 0
	for i := maxBin; i >= 0; i-- {
		if a.bins[i] < threshold {
			below++
		} else {
			below = 0
		}
		if below >= repetitions {
			left = i + repetitions
			break
		}
	}

	right := a.fftSize
	below = 0
	for i := maxBin; i < a.fftSize+1; i++ {
		if a.bins[i] < threshold {
			below++
		} else {
			below = 0
		}
		if below >= repetitions {
			right = i - repetitions
			break
		}
	}

	return maxBin, right - left
}

// Autocorrelate computes the correlogram of length fftSize+1 in Q16.16 by
// inverse-transforming the PSD accumulator (Wiener-Khinchin): the
// autocorrelation of a wide-sense-stationary signal is the inverse Fourier
// transform of its PSD. Returns true on arithmetic overflow.
func (a *Accumulator) Autocorrelate() ([]fixed.Complex, bool) {
	spectrumIn := make([]fixed.Complex, len(a.bins))
	for i, v := range a.bins {
		spectrumIn[i] = fixed.Complex{Real: v}
	}
	var errs fixed.ErrorContext
	timeDomain := a.tr.Inverse(spectrumIn, &errs)
	correlogram := make([]fixed.Complex, len(a.bins))
	for i := range correlogram {
		correlogram[i] = fixed.Complex{Real: timeDomain[i]}
	}
	return correlogram, errs.Occurred()
}

// FindMaximumAutoCorrelation returns max|correlogram[k].real| over
// k in [startLag, fftSize], excluding low lags that include the inherent
// self-correlation peak of any real signal (spec §4.4).
func FindMaximumAutoCorrelation(correlogram []fixed.Complex, startLag int, errs *fixed.ErrorContext) fixed.Q1616 {
	var max fixed.Q1616
	for k := startLag; k < len(correlogram); k++ {
		v := correlogram[k].Real.Abs(errs)
		if v > max {
			max = v
		}
	}
	return max
}
