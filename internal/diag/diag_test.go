package diag

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwrngqual/internal/adcio"
	"hwrngqual/internal/fixed"
	"hwrngqual/internal/qualify"
)

func smallConfig() qualify.Config {
	cfg := qualify.DefaultConfig()
	cfg.SampleCount = 256
	cfg.HistogramNumBins = 64
	cfg.FFTSize = 8
	return cfg
}

func encodeSamples(samples []uint16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], s)
	}
	return buf
}

func TestRunModeStatsSendsFourFix16Values(t *testing.T) {
	cfg := smallConfig()
	h := NewHarness(cfg)

	samples := make([]uint16, cfg.SampleCount)
	for i := range samples {
		samples[i] = uint16(32 + i%8 - 4)
	}
	in := bytes.NewReader(encodeSamples(samples))
	var out bytes.Buffer

	n, err := h.Run(ModeStats, in, &out)
	require.NoError(t, err)
	assert.Equal(t, cfg.SampleCount, n)
	assert.Equal(t, 4*4, out.Len())
}

func TestRunModePSDSendsIndexValuePairs(t *testing.T) {
	cfg := smallConfig()
	h := NewHarness(cfg)

	samples := make([]uint16, cfg.SampleCount)
	for i := range samples {
		samples[i] = uint16(32)
	}
	in := bytes.NewReader(encodeSamples(samples))
	var out bytes.Buffer

	_, err := h.Run(ModePSD, in, &out)
	require.NoError(t, err)
	assert.Equal(t, (cfg.FFTSize+1)*2*4, out.Len())
}

func TestRunFailsOnShortInput(t *testing.T) {
	cfg := smallConfig()
	h := NewHarness(cfg)
	in := bytes.NewReader(encodeSamples(make([]uint16, 4)))
	var out bytes.Buffer
	_, err := h.Run(ModeStats, in, &out)
	require.Error(t, err)
}

func TestRunSelfTestModeAppendsCycleCount(t *testing.T) {
	cfg := smallConfig()
	h := NewHarness(cfg)

	samples := make([]uint16, cfg.SampleCount)
	for i := range samples {
		samples[i] = uint16(32 + i%8 - 4)
	}
	in := bytes.NewReader(encodeSamples(samples))
	var out bytes.Buffer

	n, err := h.Run(ModeSelfTest, in, &out)
	require.NoError(t, err)
	assert.Equal(t, cfg.SampleCount, n)
	// Five Q16.16 values (mean, variance, kappa3, kappa4, entropy) plus a
	// trailing 32-bit little-endian cycle count, per spec §6.
	assert.Equal(t, 5*4+4, out.Len())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeStats, ParseMode('S'))
	assert.Equal(t, ModePSD, ParseMode('P'))
	assert.Equal(t, ModeRaw, ParseMode('R'))
	assert.Equal(t, ModeRaw, ParseMode('X'))
	assert.Equal(t, ModeSelfTest, ParseMode('x'))
	assert.Equal(t, ModeSelfTest, ParseMode(0))
}

func TestRunRejectsModeRaw(t *testing.T) {
	cfg := smallConfig()
	h := NewHarness(cfg)
	in := bytes.NewReader(encodeSamples(make([]uint16, cfg.SampleCount)))
	var out bytes.Buffer
	_, err := h.Run(ModeRaw, in, &out)
	assert.Error(t, err)
}

func TestRunRawForwardsBlocksFromEngine(t *testing.T) {
	// Mirrors qualify.smallConfig()/TestRandomBytesPassesOnGaussianNoise's
	// parameterization exactly, so this run reliably qualifies.
	cfg := qualify.DefaultConfig()
	cfg.ADCSampleBufferSize = 64
	cfg.OversampleRatio = 2
	cfg.SampleCount = 512
	cfg.HistogramNumBins = 64
	cfg.FFTSize = 8
	cfg.StatTestMinMean = 24
	cfg.StatTestMaxMean = 40
	cfg.StatTestMinVariance = 1
	cfg.StatTestMaxVariance = 4000
	cfg.StatTestMaxSkewness = 3
	cfg.StatTestMinKurtosis = -3
	cfg.StatTestMaxKurtosis = 3
	cfg.StatTestMinEntropy = 0
	cfg.PSDMinPeak = 0
	cfg.PSDMaxPeak = 1
	cfg.PSDMinBandwidth = 0

	buf := adcio.NewSimulatedBuffer(cfg.ADCSampleBufferSize, 32, 6, 7)
	engine, err := qualify.New(cfg, buf, adcio.NopPowerController{})
	require.NoError(t, err)

	h := NewHarness(cfg).WithEngine(engine)
	var out bytes.Buffer
	n, err := h.RunRaw(context.Background(), &out, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 64, out.Len())
}

func TestRunRawWithoutEngineErrors(t *testing.T) {
	h := NewHarness(smallConfig())
	var out bytes.Buffer
	_, err := h.RunRaw(context.Background(), &out, 1)
	assert.Error(t, err)
}

func TestSummaryFormatsMomentsAndGrid(t *testing.T) {
	s := Summary(fixed.FromInt(1), fixed.FromInt(2), 0, 0, fixed.FromInt(3), qualify.VerdictMean)
	assert.Contains(t, s, "mean=1.0000")
	assert.Contains(t, s, "Fppppppp")
}
