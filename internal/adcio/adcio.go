// Package adcio defines the qualification engine's ADC and power-controller
// collaborators (spec §1 "deliberately out of scope", §6 "Collaborator
// APIs") and provides a simulated ADC for use where no physical driver is
// available: tests, benchmarks, and the cmd/hwrngctl demo.
package adcio

import "math/rand"

// Buffer is the ADC circular buffer collaborator: beginFillingADCBuffer,
// isADCBufferFull, and read access to adc_sample_buffer from spec §6.
type Buffer interface {
	// BeginFill starts an asynchronous fill of the buffer (the DMA write in
	// the original firmware).
	BeginFill()
	// Full reports whether the most recently begun fill has completed.
	Full() bool
	// Samples returns the buffer's current contents. Its length is
	// ADC_SAMPLE_BUFFER_SIZE, a power of two. The caller must not retain the
	// slice past the next BeginFill call.
	Samples() []uint16
}

// PowerController is the idle-mode power collaborator (spec §6
// suppressIdleMode).
type PowerController interface {
	SuppressIdleMode(suppress bool)
}

// NopPowerController is a PowerController that does nothing, for hosted
// platforms with no idle-mode power state to manage.
type NopPowerController struct{}

// SuppressIdleMode implements PowerController.
func (NopPowerController) SuppressIdleMode(bool) {}

// SimulatedBuffer is a software stand-in for the physical ADC circular
// buffer: each BeginFill synthesizes ADC_SAMPLE_BUFFER_SIZE samples of
// white Gaussian noise around a midrange DC bias, the way a healthy HWRNG
// is assumed to behave (spec §1). It's immediately Full after BeginFill,
// since there's no real DMA to wait on.
type SimulatedBuffer struct {
	rng     *rand.Rand
	samples []uint16
	mean    float64
	stddev  float64
	full    bool
}

// NewSimulatedBuffer returns a SimulatedBuffer of the given size (must be a
// power of two), generating samples from a Gaussian distribution with the
// given mean and standard deviation, clamped to the 16-bit sample range.
func NewSimulatedBuffer(size int, mean, stddev float64, seed int64) *SimulatedBuffer {
	return &SimulatedBuffer{
		rng:     rand.New(rand.NewSource(seed)),
		samples: make([]uint16, size),
		mean:    mean,
		stddev:  stddev,
	}
}

// BeginFill synthesizes a fresh buffer of noise samples.
func (b *SimulatedBuffer) BeginFill() {
	for i := range b.samples {
		v := b.rng.NormFloat64()*b.stddev + b.mean
		b.samples[i] = clampSample(v)
	}
	b.full = true
}

// Full reports whether the buffer has been filled since the last BeginFill.
func (b *SimulatedBuffer) Full() bool { return b.full }

// Samples returns the current buffer contents.
func (b *SimulatedBuffer) Samples() []uint16 { return b.samples }

func clampSample(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

// ConstantBuffer always reports the same sample value, useful for exercising
// the engine's constant-input failure scenario (spec §8 scenario 2).
type ConstantBuffer struct {
	size  int
	value uint16
	full  bool
}

// NewConstantBuffer returns a ConstantBuffer of the given size reporting
// value for every sample.
func NewConstantBuffer(size int, value uint16) *ConstantBuffer {
	return &ConstantBuffer{size: size, value: value}
}

// BeginFill marks the buffer ready; contents never change.
func (b *ConstantBuffer) BeginFill() { b.full = true }

// Full reports whether BeginFill has been called.
func (b *ConstantBuffer) Full() bool { return b.full }

// Samples returns size copies of value.
func (b *ConstantBuffer) Samples() []uint16 {
	out := make([]uint16, b.size)
	for i := range out {
		out[i] = b.value
	}
	return out
}
