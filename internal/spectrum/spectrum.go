// Package spectrum wraps gonum.org/v1/gonum/dsp/fourier's real-to-complex
// FFT as the "FFT primitive" external collaborator of spec §6: a
// real-to-complex transform over N real samples producing N/2+1 complex
// bins, plus its inverse, with values quantized to Q16.16 and a sticky
// overflow flag set on saturation during quantization.
//
// The original firmware's FFT primitive operates natively in Q16.16; gonum's
// only operates in float64. We run the transform in float64 (gonum's native
// domain) and quantize at the package boundary, which is where overflow
// against the Q16.16 range is actually possible for this signal scale.
package spectrum

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"hwrngqual/internal/fixed"
)

// Transformer performs a real FFT of a fixed size N (and its inverse),
// producing/consuming N/2+1 complex bins in Q16.16.
type Transformer struct {
	n   int
	fft *fourier.FFT

	realBuf []float64
	coefBuf []complex128
}

// New returns a Transformer for real input blocks of length n.
func New(n int) *Transformer {
	return &Transformer{
		n:       n,
		fft:     fourier.NewFFT(n),
		realBuf: make([]float64, n),
		coefBuf: make([]complex128, n/2+1),
	}
}

// Len returns N, the size of the real input block.
func (t *Transformer) Len() int { return t.n }

// Forward computes the real-to-complex FFT of samples (length N), writing
// N/2+1 complex bins into dst (which must have that capacity) and returning
// it. It sets errs if any bin's real or imaginary part does not fit in
// Q16.16.
func (t *Transformer) Forward(samples []fixed.Q1616, dst []fixed.Complex, errs *fixed.ErrorContext) []fixed.Complex {
	for i, s := range samples {
		t.realBuf[i] = s.Float64()
	}
	coef := t.fft.Coefficients(t.coefBuf, t.realBuf)
	if dst == nil || cap(dst) < len(coef) {
		dst = make([]fixed.Complex, len(coef))
	}
	dst = dst[:len(coef)]
	for i, c := range coef {
		dst[i] = quantizeComplex(c, errs)
	}
	return dst
}

// Inverse computes the complex-to-real inverse FFT of coef (length N/2+1),
// returning N real Q16.16 samples. gonum's Sequence is unnormalized, so its
// output is scaled by 1/N here and Inverse(Forward(x)) reproduces x. Used by
// the autocorrelation routine (Wiener-Khinchin: autocorrelation is the
// inverse FFT of the PSD).
func (t *Transformer) Inverse(coef []fixed.Complex, errs *fixed.ErrorContext) []fixed.Q1616 {
	cbuf := make([]complex128, len(coef))
	for i, c := range coef {
		cbuf[i] = complex(c.Real.Float64(), c.Imag.Float64())
	}
	seq := t.fft.Sequence(t.realBuf, cbuf)
	out := make([]fixed.Q1616, len(seq))
	for i, v := range seq {
		out[i] = quantizeFloat(v/float64(t.n), errs)
	}
	return out
}

func quantizeComplex(c complex128, errs *fixed.ErrorContext) fixed.Complex {
	return fixed.Complex{
		Real: quantizeFloat(real(c), errs),
		Imag: quantizeFloat(imag(c), errs),
	}
}

const (
	q1616Max = float64(int32(1)<<31-1) / float64(int64(1)<<16)
	q1616Min = -float64(int32(1)<<31) / float64(int64(1)<<16)
)

func quantizeFloat(v float64, errs *fixed.ErrorContext) fixed.Q1616 {
	if v > q1616Max {
		errs.MarkOverflow()
		return fixed.Q1616(1<<31 - 1)
	}
	if v < q1616Min {
		errs.MarkOverflow()
		return fixed.Q1616(-(1 << 31))
	}
	return fixed.FromFloat(v)
}
