// Package firfilter implements the symmetric FIR low-pass decimator applied
// to the ADC circular buffer (spec §4.1).
package firfilter

import "hwrngqual/internal/fixed"

// Decimator applies a symmetric Q16.16 FIR kernel to a circular sample
// buffer and decimates by a fixed oversample ratio.
type Decimator struct {
	coeffs     []fixed.Q1616 // length FILTER_ORDER = 2*halfOrder+1
	halfOrder  int
	oversample int
}

// NewDecimator builds a Decimator from an odd-length, Q16.16 symmetric
// kernel. halfOrder must equal (len(coeffs)-1)/2; oversample is the
// OVERSAMPLE_RATIO decimation factor.
func NewDecimator(coeffs []fixed.Q1616, halfOrder, oversample int) *Decimator {
	return &Decimator{coeffs: coeffs, halfOrder: halfOrder, oversample: oversample}
}

// DecimatedSize returns the number of filtered output samples produced from
// an ADC buffer of the given size (which must be a power of two).
func (d *Decimator) DecimatedSize(adcBufferSize int) int {
	return adcBufferSize / d.oversample
}

// Decimate filters the entire adcBuffer (whose length must be a power of
// two) into out, which must have capacity DecimatedSize(len(adcBuffer)).
// Indexing into adcBuffer wraps circularly via a bitmask, per spec §4.1.
func (d *Decimator) Decimate(adcBuffer []uint16, out []uint16) {
	n := len(adcBuffer)
	mask := n - 1
	decimated := d.DecimatedSize(n)
	for j := 0; j < decimated; j++ {
		base := (j*d.oversample - d.halfOrder) & mask
		out[j] = d.filterAt(adcBuffer, base, mask)
	}
}

// filterAt performs circular convolution of the kernel starting at base,
// rounding the Q16.16 product sum back to an integer sample. The rounding
// expression (sum>>16)+((sum>>15)&1) rounds half-up for sum≥0 but toward
// zero for negative sum on an exact half (spec §9 open question); this is
// preserved bit-for-bit rather than "fixed", since whether the asymmetry is
// intentional is explicitly unresolved.
func (d *Decimator) filterAt(adcBuffer []uint16, base, mask int) uint16 {
	var sum int64
	for i, c := range d.coeffs {
		idx := (base + i) & mask
		sum += int64(adcBuffer[idx]) * int64(c)
	}
	rounded := (sum >> 16) + ((sum >> 15) & 1)
	return uint16(rounded)
}
