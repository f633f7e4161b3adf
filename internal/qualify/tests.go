package qualify

import (
	"hwrngqual/internal/fixed"
	"hwrngqual/internal/psd"
)

// histogramTestsFailed runs the mean/variance/skewness/kurtosis/entropy
// tests of spec §4.6 against the engine's accumulated histogram, returning
// the verdict bits they set and the variance (needed by the autocorrelation
// test below). Skewness is tested in squared form (kappa3² against
// variance³·maxSkewness²) and kurtosis by comparing kappa4 against
// (kurtosis+3)·variance², so that neither a square root nor a division is
// needed, the way the original firmware's calculateHistogramTests does.
func (e *Engine) histogramTestsFailed(errs *fixed.ErrorContext) (Verdict, fixed.Q1616) {
	cfg := e.cfg

	errs.Clear()
	mean := e.hist.CentralMoment(0, 1, errs)
	variance := e.hist.CentralMoment(mean, 2, errs)
	kappa3 := e.hist.CentralMoment(mean, 3, errs)
	kappa4 := e.hist.CentralMoment(mean, 4, errs)
	momentOverflow := errs.Occurred()

	errs.Clear()
	entropyEstimate := e.hist.EstimateEntropy(errs)
	entropyOverflow := errs.Occurred()

	var v Verdict

	minMean := fixed.F16((cfg.StatTestMinMean - float64(cfg.HistogramNumBins)/2) / float64(cfg.SampleScaleDown))
	maxMean := fixed.F16((cfg.StatTestMaxMean - float64(cfg.HistogramNumBins)/2) / float64(cfg.SampleScaleDown))
	if mean <= minMean {
		v |= VerdictMean
	}
	if mean >= maxMean {
		v |= VerdictMean
	}

	minVar := fixed.F16(cfg.StatTestMinVariance / float64(cfg.SampleScaleDown) / float64(cfg.SampleScaleDown))
	maxVar := fixed.F16(cfg.StatTestMaxVariance / float64(cfg.SampleScaleDown) / float64(cfg.SampleScaleDown))
	if variance <= minVar {
		e.logger.Debug("variance below minimum", "variance", variance.Float64(), "minimum", minVar.Float64())
		v |= VerdictVariance
	}
	if variance >= maxVar {
		e.logger.Debug("variance above maximum", "variance", variance.Float64(), "maximum", maxVar.Float64())
		v |= VerdictVariance
	}

	varSquared := variance.Mul(variance, errs)
	varCubed := varSquared.Mul(variance, errs)
	kappa3Squared := kappa3.Mul(kappa3, errs)
	maxSkewSquared := fixed.F16(cfg.StatTestMaxSkewness * cfg.StatTestMaxSkewness)
	if kappa3Squared >= varCubed.Mul(maxSkewSquared, errs) {
		v |= VerdictSkewness
	}

	threeVarSquared := fixed.FromInt(3).Mul(varSquared, errs)
	minKurtosisTerm := fixed.F16(cfg.StatTestMinKurtosis).Mul(varSquared, errs).Add(threeVarSquared, errs)
	maxKurtosisTerm := fixed.F16(cfg.StatTestMaxKurtosis).Mul(varSquared, errs).Add(threeVarSquared, errs)
	if kappa4 <= minKurtosisTerm {
		v |= VerdictKurtosis
	}
	if kappa4 >= maxKurtosisTerm {
		v |= VerdictKurtosis
	}

	if momentOverflow || e.hist.OverflowOccurred() {
		v |= VerdictMean | VerdictVariance | VerdictSkewness | VerdictKurtosis
	}

	if entropyEstimate < fixed.F16(cfg.StatTestMinEntropy) {
		v |= VerdictEntropy
	}
	if entropyOverflow {
		v |= VerdictEntropy
	}

	return v, variance
}

// fftTestsFailed runs the peak-frequency, bandwidth, and autocorrelation
// tests of spec §4.5/§4.4 against the engine's accumulated PSD, given the
// variance computed by histogramTestsFailed (the autocorrelation threshold
// is expressed relative to it).
func (e *Engine) fftTestsFailed(variance fixed.Q1616, errs *fixed.ErrorContext) Verdict {
	cfg := e.cfg

	errs.Clear()
	maxBin, bandwidth := e.psdAcc.EstimateBandwidth(fixed.F16(cfg.PSDBandwidthThreshold), cfg.PSDThresholdRepetitions, errs)
	// The fixed-point error flag raised inside EstimateBandwidth's threshold
	// multiply is discarded here, matching the original firmware's
	// `fix16_error_occurred = false;` right after estimateBandwidth() returns:
	// bits 4/5 are driven solely by the PSD accumulator's own sticky flag.
	errs.Clear()
	psdOverflow := e.psdAcc.OverflowOccurred()

	errs.Clear()
	correlogram, autocorrOverflow := e.psdAcc.Autocorrelate()
	maxAutocorr := psd.FindMaximumAutoCorrelation(correlogram, cfg.AutocorrStartLag, errs)
	autocorrOverflow = autocorrOverflow || errs.Occurred()

	var v Verdict
	fftSpan := fixed.F16(2 * float64(cfg.FFTSize))

	if fixed.FromInt(maxBin) < fftSpan.Mul(fixed.F16(cfg.PSDMinPeak), errs) {
		v |= VerdictPeakFrequency
	}
	if fixed.FromInt(maxBin) > fftSpan.Mul(fixed.F16(cfg.PSDMaxPeak), errs) {
		v |= VerdictPeakFrequency
	}
	if fixed.FromInt(bandwidth) < fftSpan.Mul(fixed.F16(cfg.PSDMinBandwidth), errs) {
		v |= VerdictBandwidth
	}
	if psdOverflow {
		v |= VerdictPeakFrequency | VerdictBandwidth
	}

	if maxAutocorr > variance.Mul(fixed.F16(cfg.AutocorrThreshold), errs) {
		v |= VerdictAutocorrelation
	}
	if autocorrOverflow {
		v |= VerdictAutocorrelation
	}

	return v
}
