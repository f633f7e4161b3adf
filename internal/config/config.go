// Package config loads the qualification engine's Config from a TOML file,
// the same way the teacher's root config.go loaded ogdar.toml via viper.
package config

import (
	"github.com/spf13/viper"

	"hwrngqual/internal/fixed"
	"hwrngqual/internal/qualify"
)

// tomlConfig mirrors qualify.Config in TOML-friendly types: viper can
// unmarshal into plain ints and floats but not directly into fixed.Q1616,
// so FilterCoefficients round-trips as raw Q16.16 int32 values.
type tomlConfig struct {
	ADCSampleBufferSize int     `mapstructure:"adc_sample_buffer_size"`
	OversampleRatio     int     `mapstructure:"oversample_ratio"`
	FilterHalfOrder     int     `mapstructure:"filter_half_order"`
	FilterCoefficients  []int32 `mapstructure:"filter_coefficients"`

	SampleCount          int     `mapstructure:"sample_count"`
	HistogramNumBins     int     `mapstructure:"histogram_num_bins"`
	SampleScaleDown      int     `mapstructure:"sample_scale_down"`
	EntropyBitsPerSample float64 `mapstructure:"entropy_bits_per_sample"`
	FFTSize              int     `mapstructure:"fft_size"`

	StatTestMinMean     float64 `mapstructure:"stattest_min_mean"`
	StatTestMaxMean     float64 `mapstructure:"stattest_max_mean"`
	StatTestMinVariance float64 `mapstructure:"stattest_min_variance"`
	StatTestMaxVariance float64 `mapstructure:"stattest_max_variance"`
	StatTestMaxSkewness float64 `mapstructure:"stattest_max_skewness"`
	StatTestMinKurtosis float64 `mapstructure:"stattest_min_kurtosis"`
	StatTestMaxKurtosis float64 `mapstructure:"stattest_max_kurtosis"`
	StatTestMinEntropy  float64 `mapstructure:"stattest_min_entropy"`

	PSDMinPeak              float64 `mapstructure:"psd_min_peak"`
	PSDMaxPeak              float64 `mapstructure:"psd_max_peak"`
	PSDMinBandwidth         float64 `mapstructure:"psd_min_bandwidth"`
	PSDBandwidthThreshold   float64 `mapstructure:"psd_bandwidth_threshold"`
	PSDThresholdRepetitions int     `mapstructure:"psd_threshold_repetitions"`
	AutocorrStartLag        int     `mapstructure:"autocorr_start_lag"`
	AutocorrThreshold       float64 `mapstructure:"autocorr_threshold"`

	IgnoreFailure bool `mapstructure:"ignore_hwrng_failure"`
}

func (t tomlConfig) toQualifyConfig() qualify.Config {
	coeffs := make([]fixed.Q1616, len(t.FilterCoefficients))
	for i, c := range t.FilterCoefficients {
		coeffs[i] = fixed.Q1616(c)
	}
	return qualify.Config{
		ADCSampleBufferSize:     t.ADCSampleBufferSize,
		OversampleRatio:         t.OversampleRatio,
		FilterHalfOrder:         t.FilterHalfOrder,
		FilterCoefficients:      coeffs,
		SampleCount:             t.SampleCount,
		HistogramNumBins:        t.HistogramNumBins,
		SampleScaleDown:         t.SampleScaleDown,
		EntropyBitsPerSample:    t.EntropyBitsPerSample,
		FFTSize:                 t.FFTSize,
		StatTestMinMean:         t.StatTestMinMean,
		StatTestMaxMean:         t.StatTestMaxMean,
		StatTestMinVariance:     t.StatTestMinVariance,
		StatTestMaxVariance:     t.StatTestMaxVariance,
		StatTestMaxSkewness:     t.StatTestMaxSkewness,
		StatTestMinKurtosis:     t.StatTestMinKurtosis,
		StatTestMaxKurtosis:     t.StatTestMaxKurtosis,
		StatTestMinEntropy:      t.StatTestMinEntropy,
		PSDMinPeak:              t.PSDMinPeak,
		PSDMaxPeak:              t.PSDMaxPeak,
		PSDMinBandwidth:         t.PSDMinBandwidth,
		PSDBandwidthThreshold:   t.PSDBandwidthThreshold,
		PSDThresholdRepetitions: t.PSDThresholdRepetitions,
		AutocorrStartLag:        t.AutocorrStartLag,
		AutocorrThreshold:       t.AutocorrThreshold,
		IgnoreFailure:           t.IgnoreFailure,
	}
}

// Load reads configuration from a TOML-formatted file called
// 'hwrngqual.toml'. It looks for this in the /opt folder (the top-level of
// the SD card, on the current redpitaya linux image) and then in the
// current directory, for convenience.
// Returns the loaded Config and true if a config file was read.
func Load() (qualify.Config, bool) {
	viper.SetConfigName("hwrngqual") // name of config file (without extension)
	viper.AddConfigPath("/opt")      // path to look for the config file in
	viper.AddConfigPath(".")         // optionally look for config in the working directory
	err := viper.ReadInConfig()      // Find and read the config file
	if err != nil {                  // Error reading the config file
		return qualify.DefaultConfig(), false
	}
	var t tomlConfig
	if err := viper.Unmarshal(&t); err != nil {
		return qualify.DefaultConfig(), false
	}
	return t.toQualifyConfig(), true
}

// Default returns the reference qualify.Config. This should only be used
// if no other config information is available: there is no guarantee the
// shipped thresholds suit a particular HWRNG board, but they match the
// parameterization the original firmware shipped with.
func Default() qualify.Config {
	return qualify.DefaultConfig()
}
