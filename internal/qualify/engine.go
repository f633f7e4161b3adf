// Package qualify implements the qualification engine: it drives the ADC
// fill/filter/test cycle of spec §4.7, gates a vetted pool of 16-bit entropy
// words behind the statistical tests of §4.2-§4.6, and exposes the consumer
// operation external callers use to draw qualified random bytes (spec §6).
package qualify

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"hwrngqual/internal/adcio"
	"hwrngqual/internal/fixed"
	"hwrngqual/internal/firfilter"
	"hwrngqual/internal/histogram"
	"hwrngqual/internal/psd"
)

// Engine is the qualification engine. It owns one vetted pool and must not
// be used concurrently from multiple goroutines without external locking,
// matching the single-threaded assumption of the original firmware.
type Engine struct {
	cfg   Config
	adc   adcio.Buffer
	power adcio.PowerController

	fir    *firfilter.Decimator
	hist   *histogram.Histogram
	psdAcc *psd.Accumulator

	pool   []uint16
	cursor int
	state  State

	logger     *log.Logger
	onFailure  func()
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's logger (default: a charmbracelet/log
// logger writing to the process's standard error).
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFailureHook installs a callback invoked each time a run fails under an
// IgnoreFailure configuration, mirroring the original firmware's red LED
// blink on a suppressed failure (spec §7).
func WithFailureHook(hook func()) Option {
	return func(e *Engine) { e.onFailure = hook }
}

// New builds an Engine from cfg and its ADC/power collaborators. It returns
// an error if cfg fails Validate.
func New(cfg Config, adc adcio.Buffer, power adcio.PowerController, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		adc:    adc,
		power:  power,
		fir:    firfilter.NewDecimator(cfg.FilterCoefficients, cfg.FilterHalfOrder, cfg.OversampleRatio),
		hist:   histogram.New(cfg.HistogramNumBins, cfg.SampleScaleDown),
		psdAcc: psd.New(cfg.FFTSize),
		pool:   make([]uint16, cfg.SampleCount),
		state:  StateIdle,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State returns the engine's current run state.
func (e *Engine) State() State { return e.state }

// RandomBytes fills buf with qualified entropy, running a fresh acquisition
// and qualification pass whenever the vetted pool is exhausted. It returns
// the number of bits of claimed entropy represented by the written bytes
// (len(buf)*8 scaled by EntropyBitsPerSample/16, since each 16-bit sample
// contributes EntropyBitsPerSample bits to two output bytes), and an error
// if the run failed qualification (and IgnoreFailure is false) or ctx was
// cancelled mid-fill.
func (e *Engine) RandomBytes(ctx context.Context, buf *[32]byte) (bits int, err error) {
	const samplesPerCall = 16 // 32 bytes / 2 bytes-per-sample

	if e.cursor == 0 || e.cursor+samplesPerCall > len(e.pool) {
		verdict, runErr := e.run(ctx)
		if runErr != nil {
			return 0, runErr
		}
		if !verdict.Pass() {
			if !e.cfg.IgnoreFailure {
				e.state = StateFailed
				e.logger.Error("qualification failed", "verdict", verdict)
				return 0, &QualificationError{Verdict: verdict}
			}
			e.logger.Warn("qualification failed, suppressed by IgnoreFailure", "verdict", verdict)
			if e.onFailure != nil {
				e.onFailure()
			}
		} else {
			e.state = StateReady
			e.logger.Info("qualification passed", "pool_size", len(e.pool))
		}
		e.cursor = 0
	}

	for i := 0; i < samplesPerCall; i++ {
		sample := e.pool[e.cursor]
		buf[i*2] = byte(sample)
		buf[i*2+1] = byte(sample >> 8)
		e.cursor++
	}

	bits = int(float64(samplesPerCall) * e.cfg.EntropyBitsPerSample)
	return bits, nil
}

// run performs one full fill/filter/histogram/PSD/test cycle, returning the
// resulting verdict. A completed run leaves the engine in StateReady or
// StateFailed; a run whose fill is cancelled through ctx returns an error
// wrapping ErrInsufficientData and leaves the engine in StateFilling.
func (e *Engine) run(ctx context.Context) (Verdict, error) {
	e.state = StateFilling
	e.hist.Clear()
	e.psdAcc.Clear()

	blockSize := e.fir.DecimatedSize(e.cfg.ADCSampleBufferSize)
	numBlocks := e.cfg.SampleCount / blockSize
	filtered := make([]uint16, blockSize)

	e.logger.Debug("starting acquisition", "blocks", numBlocks, "block_size", blockSize)
	for i := 0; i < numBlocks; i++ {
		e.power.SuppressIdleMode(true)
		e.adc.BeginFill()
		for !e.adc.Full() {
			if err := ctx.Err(); err != nil {
				e.power.SuppressIdleMode(false)
				return 0, fmt.Errorf("%w: %v", ErrInsufficientData, err)
			}
		}
		e.power.SuppressIdleMode(false)
		e.fir.Decimate(e.adc.Samples(), filtered)
		copy(e.pool[i*blockSize:(i+1)*blockSize], filtered)
	}

	e.state = StateTesting
	for _, s := range e.pool {
		e.hist.Increment(s)
	}

	blockLen := 2 * e.cfg.FFTSize
	for i := 0; i < e.cfg.SampleCount; i += blockLen {
		e.psdAcc.Accumulate(e.pool[i : i+blockLen])
	}

	var errs fixed.ErrorContext
	verdict, variance := e.histogramTestsFailed(&errs)
	verdict |= e.fftTestsFailed(variance, &errs)

	if verdict.Pass() {
		e.state = StateReady
	} else {
		e.state = StateFailed
	}
	e.logger.Debug("run complete", "verdict", verdict, "state", e.state)
	return verdict, nil
}
