package qualify

import (
	"fmt"

	"hwrngqual/internal/fixed"
)

// Config carries the qualification engine's compile-time tunables (spec §6
// "Configuration constants"). A zero Config is invalid; build one with
// DefaultConfig and override fields, or load one from TOML via
// internal/config.
type Config struct {
	// Acquisition geometry.
	ADCSampleBufferSize int // power of two; raw ADC samples per fill
	OversampleRatio     int // decimation factor applied by the FIR filter
	FilterHalfOrder     int // (len(FilterCoefficients)-1)/2
	FilterCoefficients  []fixed.Q1616

	SampleCount          int     // decimated samples per qualification run
	HistogramNumBins     int     // must divide SampleCount's value range
	SampleScaleDown      int     // divisor converting centered bin indices into moment units
	EntropyBitsPerSample float64 // claimed entropy per emitted 16-bit word
	FFTSize              int     // N; PSD/autocorrelation use a 2N-point FFT

	// Mean/variance/skewness/kurtosis/entropy thresholds (spec §4.6), in the
	// same raw-sample units as STATTEST_* constants in the original firmware.
	StatTestMinMean      float64
	StatTestMaxMean      float64
	StatTestMinVariance  float64
	StatTestMaxVariance  float64
	StatTestMaxSkewness  float64
	StatTestMinKurtosis  float64
	StatTestMaxKurtosis  float64
	StatTestMinEntropy   float64

	// Spectral thresholds (spec §4.5). PSDMinPeak, PSDMaxPeak and
	// PSDMinBandwidth are fractions of 2*FFTSize; PSDBandwidthThreshold is a
	// fraction of the peak PSD bin; AutocorrThreshold is a fraction of the
	// variance; PSDThresholdRepetitions and AutocorrStartLag count bins.
	PSDMinPeak              float64
	PSDMaxPeak              float64
	PSDMinBandwidth         float64
	PSDBandwidthThreshold   float64
	PSDThresholdRepetitions int
	AutocorrStartLag        int
	AutocorrThreshold       float64

	// IgnoreFailure mirrors the firmware's IGNORE_HWRNG_FAILURE build option:
	// a failed run is logged and blinks the failure hook, but the pool is
	// still surfaced as if it had passed (spec §7 "Policy knob").
	IgnoreFailure bool
}

// DefaultConfig returns the reference parameterization from the original
// firmware's hwrng_config.h: a 256-sample ADC buffer at 2x oversampling, a
// 256-bin histogram, an FFTSize of 64 (128-point real FFT blocks), and the
// shipped statistical thresholds.
func DefaultConfig() Config {
	return Config{
		ADCSampleBufferSize: 256,
		OversampleRatio:     2,
		FilterHalfOrder:     8,
		FilterCoefficients: []fixed.Q1616{
			-123, 202, 711, 0, -2681, -2929, 5309, 19161,
			26236,
			19161, 5309, -2929, -2681, 0, 711, 202, -123,
		},
		SampleCount:          4096,
		HistogramNumBins:     256,
		SampleScaleDown:      1,
		EntropyBitsPerSample: 7.0,
		FFTSize:              64,

		StatTestMinMean:     96,
		StatTestMaxMean:     160,
		StatTestMinVariance: 100,
		StatTestMaxVariance: 4000,
		StatTestMaxSkewness: 1.0,
		StatTestMinKurtosis: -1.0,
		StatTestMaxKurtosis: 1.0,
		StatTestMinEntropy:  6.5,

		PSDMinPeak:              0,
		PSDMaxPeak:              1,
		PSDMinBandwidth:         0.25,
		PSDBandwidthThreshold:   0.1,
		PSDThresholdRepetitions: 3,
		AutocorrStartLag:        1,
		AutocorrThreshold:       0.25,

		IgnoreFailure: false,
	}
}

// Validate enforces the divisibility and power-of-two invariants spec §4.7
// requires of the configuration constants, the way the original firmware's
// preprocessor #if checks did at compile time.
func (c Config) Validate() error {
	if c.ADCSampleBufferSize <= 0 || c.ADCSampleBufferSize&(c.ADCSampleBufferSize-1) != 0 {
		return fmt.Errorf("qualify: ADCSampleBufferSize %d is not a positive power of two", c.ADCSampleBufferSize)
	}
	if c.OversampleRatio <= 0 || c.ADCSampleBufferSize%c.OversampleRatio != 0 {
		return fmt.Errorf("qualify: OversampleRatio %d does not divide ADCSampleBufferSize %d", c.OversampleRatio, c.ADCSampleBufferSize)
	}
	if want := 2*c.FilterHalfOrder + 1; len(c.FilterCoefficients) != want {
		return fmt.Errorf("qualify: FilterCoefficients has %d taps, want %d for FilterHalfOrder %d", len(c.FilterCoefficients), want, c.FilterHalfOrder)
	}
	decimatedSize := c.ADCSampleBufferSize / c.OversampleRatio
	if decimatedSize%16 != 0 {
		return fmt.Errorf("qualify: decimated buffer size %d (ADCSampleBufferSize/OversampleRatio) is not a multiple of 16", decimatedSize)
	}
	if c.SampleCount <= 0 || c.SampleCount%decimatedSize != 0 {
		return fmt.Errorf("qualify: SampleCount %d is not a multiple of the decimated buffer size %d", c.SampleCount, decimatedSize)
	}
	if c.FFTSize <= 0 || c.SampleCount%(2*c.FFTSize) != 0 {
		return fmt.Errorf("qualify: SampleCount %d is not a multiple of 2*FFTSize (%d)", c.SampleCount, 2*c.FFTSize)
	}
	if c.HistogramNumBins <= 0 || c.HistogramNumBins&(c.HistogramNumBins-1) != 0 {
		return fmt.Errorf("qualify: HistogramNumBins %d is not a positive power of two", c.HistogramNumBins)
	}
	if c.SampleScaleDown <= 0 {
		return fmt.Errorf("qualify: SampleScaleDown must be positive, got %d", c.SampleScaleDown)
	}
	if c.PSDThresholdRepetitions <= 0 {
		return fmt.Errorf("qualify: PSDThresholdRepetitions must be positive, got %d", c.PSDThresholdRepetitions)
	}
	return nil
}
