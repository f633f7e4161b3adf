// Package histogram accumulates a frequency distribution of filtered HWRNG
// samples and derives the central moments and Shannon entropy estimate the
// qualification engine's statistical tests are built on (spec §4.2).
package histogram

import (
	"math"

	"hwrngqual/internal/fixed"
)

// Histogram is a fixed-size bucketed frequency distribution with a sticky
// overflow flag, mirroring the original firmware's histogram array and its
// histogram_overflow_occurred flag.
type Histogram struct {
	bins      []uint32
	numBins   int
	scaleDown int
	overflow  bool
}

// New returns an empty Histogram with numBins buckets. scaleDown is the
// SAMPLE_SCALE_DOWN configuration constant used to convert a bin index into
// the signal units moments are expressed in.
func New(numBins, scaleDown int) *Histogram {
	return &Histogram{
		bins:      make([]uint32, numBins),
		numBins:   numBins,
		scaleDown: scaleDown,
	}
}

// Clear zeros all bins and the overflow flag.
func (h *Histogram) Clear() {
	for i := range h.bins {
		h.bins[i] = 0
	}
	h.overflow = false
}

// Increment maps sample to a bin (its low bits modulo numBins) and
// increments that bin's count, setting the overflow flag if the counter
// saturates.
func (h *Histogram) Increment(sample uint16) {
	bin := int(sample) % h.numBins
	if h.bins[bin] == math.MaxUint32 {
		h.overflow = true
		return
	}
	h.bins[bin]++
}

// OverflowOccurred reports whether any bin count has saturated since Clear.
func (h *Histogram) OverflowOccurred() bool {
	return h.overflow
}

// total returns the total number of samples accumulated.
func (h *Histogram) total() uint64 {
	var n uint64
	for _, c := range h.bins {
		n += uint64(c)
	}
	return n
}

// binCenter returns the bin-center value for bin i, in the same scaled,
// centered units as calculateCentralMoment's xᵢ in the original firmware:
// (i - numBins/2) / scaleDown.
func (h *Histogram) binCenter(i int) fixed.Q1616 {
	return fixed.F16((float64(i) - float64(h.numBins)/2) / float64(h.scaleDown))
}

// CentralMoment computes Σᵢ pᵢ·(xᵢ-about)^order over the empirical
// distribution, where pᵢ is bin i's empirical frequency and xᵢ is its
// scaled, centered value. Sets errs on arithmetic overflow.
func (h *Histogram) CentralMoment(about fixed.Q1616, order int, errs *fixed.ErrorContext) fixed.Q1616 {
	total := h.total()
	if total == 0 {
		return 0
	}
	var sum fixed.Q1616
	for i, count := range h.bins {
		if count == 0 {
			continue
		}
		p := fixed.F16(float64(count) / float64(total))
		dev := h.binCenter(i).Sub(about, errs)
		term := fixed.One
		for k := 0; k < order; k++ {
			term = term.Mul(dev, errs)
		}
		sum = sum.Add(p.Mul(term, errs), errs)
	}
	return sum
}

// EstimateEntropy computes the Shannon entropy, in bits, of the empirical
// distribution: -Σᵢ pᵢ·log2(pᵢ), skipping zero-count bins. The logarithm is
// computed in float64 (no fixed-point log primitive is available, here or
// anywhere in the corpus this repo draws on) and the final result is
// quantized back to Q16.16, setting errs if it doesn't fit.
func (h *Histogram) EstimateEntropy(errs *fixed.ErrorContext) fixed.Q1616 {
	total := h.total()
	if total == 0 {
		return 0
	}
	var bits float64
	for _, count := range h.bins {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		bits -= p * math.Log2(p)
	}
	if bits > 32767 || bits < -32768 {
		errs.MarkOverflow()
		if bits > 32767 {
			return fixed.FromInt(32767)
		}
		return fixed.FromInt(-32768)
	}
	return fixed.FromFloat(bits)
}
