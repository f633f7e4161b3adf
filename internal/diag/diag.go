// Package diag implements the qualification engine's optional host-stream
// diagnostic protocol (spec §6 "Diagnostic layer"): a single mode byte
// selects what the device streams back, mirroring the original firmware's
// testStatistics()/reportStatistics().
//
// This package is never on the random-number path; it exists for bench
// characterization and host-side regression capture, and is wired up by
// cmd/hwrngdiag rather than cmd/hwrngctl.
package diag

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/montanaflynn/stats"

	"hwrngqual/internal/fixed"
	"hwrngqual/internal/histogram"
	"hwrngqual/internal/psd"
	"hwrngqual/internal/qualify"
)

// Mode selects what a host-stream session reports, matching the mode byte
// testStatistics() reads from the stream.
type Mode byte

const (
	// ModeSelfTest is entered by any non-letter mode byte: the host feeds
	// SampleCount samples and the device reports five Q16.16 moments plus a
	// cycle count (spec §6 "A non-letter mode enters a host-driven test
	// loop"). It is distinct from ModeRaw below even though the original
	// firmware's fallback `else { report_to_stream = 0; }` branch shares the
	// same in-memory value (0) with no data source other than the live RNG:
	// here the two are given separate Mode values because they read from
	// entirely different sources (host-fed samples vs. the live engine).
	ModeSelfTest Mode = 0
	// ModeRaw is any letter mode byte not recognized as one of the named
	// modes below (canonically 'R'): forwards RandomBytes output from a
	// live engine unmodified, the way the original's report_to_stream==0
	// letter-mode loop streamed hardwareRandom32Bytes() directly.
	ModeRaw Mode = 'R'
	// ModeStats streams mean/variance/kappa3/kappa4 per run.
	ModeStats Mode = 'S'
	// ModePSD streams the full PSD accumulator.
	ModePSD Mode = 'P'
	// ModeBandwidth streams the peak bin and bandwidth estimate.
	ModeBandwidth Mode = 'B'
	// ModeAutocorrelation streams variance and maximum autocorrelation.
	ModeAutocorrelation Mode = 'A'
	// ModeEntropy streams variance, maximum autocorrelation, and the
	// entropy estimate.
	ModeEntropy Mode = 'E'
)

// ParseMode maps a mode byte from the stream to a Mode, the way
// testStatistics()'s `if (mode >= 'A' && mode <= 'Z')` dispatch did: any
// letter not recognized as one of the five named report modes falls back to
// ModeRaw, and any non-letter byte selects ModeSelfTest.
func ParseMode(b byte) Mode {
	if b < 'A' || b > 'Z' {
		return ModeSelfTest
	}
	switch Mode(b) {
	case ModeStats, ModePSD, ModeBandwidth, ModeAutocorrelation, ModeEntropy:
		return Mode(b)
	default:
		return ModeRaw
	}
}

// RandomSource is the live qualified-entropy source ModeRaw forwards,
// satisfied by *qualify.Engine.
type RandomSource interface {
	RandomBytes(ctx context.Context, buf *[32]byte) (int, error)
}

// Harness drives the diagnostic protocol against its own histogram and PSD
// accumulator, sized like a qualification engine's and independent of the
// pass/fail gate: a
// diagnostic session reports statistics for whatever was streamed in, pass
// or fail.
type Harness struct {
	cfg    qualify.Config
	hist   *histogram.Histogram
	psdAcc *psd.Accumulator
	logger *log.Logger
	rng    RandomSource
}

// NewHarness builds a Harness sized from cfg's histogram/FFT geometry. It
// cannot serve ModeRaw sessions until given a RandomSource via WithEngine.
func NewHarness(cfg qualify.Config) *Harness {
	return &Harness{
		cfg:    cfg,
		hist:   histogram.New(cfg.HistogramNumBins, cfg.SampleScaleDown),
		psdAcc: psd.New(cfg.FFTSize),
		logger: log.Default(),
	}
}

// WithEngine attaches a live RandomSource, enabling ModeRaw sessions, and
// returns h for chaining.
func (h *Harness) WithEngine(rng RandomSource) *Harness {
	h.rng = rng
	return h
}

// RunRaw forwards count 32-byte blocks of h's live RandomSource to w
// unmodified, the host-stream counterpart of ModeRaw's
// report_to_stream==0 firmware loop. It returns once count blocks have been
// written, ctx is cancelled, or a draw fails.
func (h *Harness) RunRaw(ctx context.Context, w io.Writer, count int) (int, error) {
	if h.rng == nil {
		return 0, fmt.Errorf("diag: ModeRaw requires a RandomSource (call WithEngine first)")
	}
	var buf [32]byte
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := h.rng.RandomBytes(ctx, &buf); err != nil {
			return i, fmt.Errorf("diag: drawing raw block %d: %w", i, err)
		}
		if _, err := w.Write(buf[:]); err != nil {
			return i, err
		}
	}
	return count, nil
}

// Run reads one ModeSelfTest (or named-report) session's worth of 16-bit
// little-endian samples from r (SampleCount of them), computes the
// statistics mode selects, and writes the wire-format report to w. It
// returns the number of samples consumed. ModeRaw is not handled here; use
// RunRaw, since raw forwarding has no host-supplied sample input.
func (h *Harness) Run(mode Mode, r io.Reader, w io.Writer) (int, error) {
	if mode == ModeRaw {
		return 0, fmt.Errorf("diag: ModeRaw is served by RunRaw, not Run")
	}
	h.hist.Clear()
	h.psdAcc.Clear()

	samples := make([]uint16, h.cfg.SampleCount)
	var pair [2]byte
	for i := range samples {
		if _, err := io.ReadFull(r, pair[:]); err != nil {
			return i, fmt.Errorf("diag: reading sample %d: %w", i, err)
		}
		samples[i] = binary.LittleEndian.Uint16(pair[:])
		h.hist.Increment(samples[i])
	}

	blockLen := 2 * h.cfg.FFTSize
	for i := 0; i < len(samples); i += blockLen {
		h.psdAcc.Accumulate(samples[i : i+blockLen])
	}

	var errs fixed.ErrorContext
	start := time.Now()
	mean := h.hist.CentralMoment(0, 1, &errs)
	variance := h.hist.CentralMoment(mean, 2, &errs)
	kappa3 := h.hist.CentralMoment(mean, 3, &errs)
	kappa4 := h.hist.CentralMoment(mean, 4, &errs)
	entropy := h.hist.EstimateEntropy(&errs)
	elapsed := time.Since(start) // read as soon as possible, mirroring the original's mfc0-after-entropy read

	h.crossCheck(samples, mean, variance)

	switch mode {
	case ModeStats:
		return len(samples), sendFix16All(w, mean, variance, kappa3, kappa4)
	case ModePSD:
		return len(samples), h.sendPSD(w)
	case ModeBandwidth:
		maxBin, bandwidth := h.psdAcc.EstimateBandwidth(fixed.F16(h.cfg.PSDBandwidthThreshold), h.cfg.PSDThresholdRepetitions, &errs)
		return len(samples), sendFix16All(w, fixed.FromInt(maxBin), fixed.FromInt(bandwidth))
	case ModeAutocorrelation:
		correlogram, _ := h.psdAcc.Autocorrelate()
		maxAutocorr := psd.FindMaximumAutoCorrelation(correlogram, h.cfg.AutocorrStartLag, &errs)
		return len(samples), sendFix16All(w, variance, maxAutocorr)
	case ModeEntropy:
		correlogram, _ := h.psdAcc.Autocorrelate()
		maxAutocorr := psd.FindMaximumAutoCorrelation(correlogram, h.cfg.AutocorrStartLag, &errs)
		return len(samples), sendFix16All(w, variance, maxAutocorr, entropy)
	case ModeSelfTest:
		// Non-letter mode: the host-driven self-test loop of spec §6. The
		// original firmware times the moment/entropy computation with the
		// PIC32 core timer (mfc0 $9) and reports elapsed ticks; a hosted
		// build has no core timer, so elapsed wall-clock nanoseconds (
		// truncated to 32 bits, matching writeU32LittleEndian's width) stands
		// in for the cycle count.
		if err := sendFix16All(w, mean, variance, kappa3, kappa4, entropy); err != nil {
			return len(samples), err
		}
		return len(samples), binary.Write(w, binary.LittleEndian, uint32(elapsed.Nanoseconds()))
	}
	return len(samples), fmt.Errorf("diag: unrecognized mode %q", byte(mode))
}

// crossCheck compares the histogram-derived mean/variance against an
// independent float64 computation over the raw samples, logging a
// discrepancy rather than failing: this path exists to catch a bug in
// internal/histogram's fixed-point moment arithmetic, not to re-implement
// the qualification gate.
func (h *Harness) crossCheck(samples []uint16, mean, variance fixed.Q1616) {
	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = float64(s)
	}
	refMean, err := stats.Mean(data)
	if err != nil {
		h.logger.Warn("cross-check mean failed", "err", err)
		return
	}
	refStdDev, err := stats.StandardDeviation(data)
	if err != nil {
		h.logger.Warn("cross-check stddev failed", "err", err)
		return
	}
	refVariance := refStdDev * refStdDev

	centeredMean := refMean - float64(h.cfg.HistogramNumBins)/2
	scaledMean := centeredMean / float64(h.cfg.SampleScaleDown)
	scaledVariance := refVariance / float64(h.cfg.SampleScaleDown) / float64(h.cfg.SampleScaleDown)

	if delta := mean.Float64() - scaledMean; delta > 1 || delta < -1 {
		h.logger.Warn("histogram mean diverges from montanaflynn/stats cross-check", "histogram", mean.Float64(), "reference", scaledMean)
	}
	if delta := variance.Float64() - scaledVariance; delta > 1 || delta < -1 {
		h.logger.Warn("histogram variance diverges from montanaflynn/stats cross-check", "histogram", variance.Float64(), "reference", scaledVariance)
	}
}

// sendPSD writes (index, value) fix16 pairs for every accumulated PSD bin.
func (h *Harness) sendPSD(w io.Writer) error {
	for i, v := range h.psdAcc.Bins() {
		if err := sendFix16All(w, fixed.FromInt(i), v); err != nil {
			return err
		}
	}
	return nil
}

// sendFix16 writes one Q16.16 value as 4 little-endian bytes, matching
// sendFix16 in the original firmware.
func sendFix16(w io.Writer, v fixed.Q1616) error {
	return binary.Write(w, binary.LittleEndian, int32(v))
}

func sendFix16All(w io.Writer, values ...fixed.Q1616) error {
	for _, v := range values {
		if err := sendFix16(w, v); err != nil {
			return err
		}
	}
	return nil
}

// Summary renders the pass/fail letter grid plus the moments that produced
// it, the host-readable form of reportStatistics()'s on-device display.
func Summary(mean, variance, kappa3, kappa4, entropy fixed.Q1616, v qualify.Verdict) string {
	return fmt.Sprintf(
		"mean=%.4f variance=%.4f kappa3=%.4f kappa4=%.4f entropy=%.4f %s",
		mean.Float64(), variance.Float64(), kappa3.Float64(), kappa4.Float64(), entropy.Float64(), v.Summary(),
	)
}
