// Package fixed implements Q16.16 fixed-point arithmetic: a 32-bit signed
// word with 16 integer bits and 16 fractional bits, matching the fix16_t
// representation used throughout the original HWRNG qualification firmware.
//
// The C original tracks overflow with a single process-wide sticky flag
// (fix16_error_occurred) that every arithmetic routine may set and that
// callers clear before a semantic group of computations and inspect after.
// Here that flag is an explicit value, ErrorContext, owned by whichever
// caller needs it (the qualification engine, in this repo) and passed into
// each arithmetic call instead of living in a global.
package fixed

import "math"

// Q1616 is a Q16.16 fixed-point number.
type Q1616 int32

const (
	fracBits = 16
	// One is the fixed-point representation of 1.0.
	One = Q1616(1 << fracBits)
	// maxValue and minValue bound the representable range; used to detect
	// saturation in Mul and Add.
	maxValue = Q1616(math.MaxInt32)
	minValue = Q1616(math.MinInt32)
)

// ErrorContext is a sticky overflow flag, threaded explicitly into
// arithmetic calls rather than held as global state. Clear it before a
// semantic group of computations (a set of moments, an FFT block, an
// autocorrelation pass) and inspect Occurred() immediately after, exactly as
// the original firmware clears and checks fix16_error_occurred.
type ErrorContext struct {
	sticky bool
}

// Clear resets the sticky flag.
func (e *ErrorContext) Clear() {
	if e != nil {
		e.sticky = false
	}
}

// Occurred reports whether any operation set the flag since it was last cleared.
func (e *ErrorContext) Occurred() bool {
	return e != nil && e.sticky
}

func (e *ErrorContext) set() {
	if e != nil {
		e.sticky = true
	}
}

// MarkOverflow sets the sticky flag from outside the fixed package, for
// callers (such as internal/spectrum) that quantize their own values into
// Q16.16 and need to report saturation through the same channel.
func (e *ErrorContext) MarkOverflow() {
	e.set()
}

// FromInt converts an integer to Q16.16, saturating at the representable
// range rather than wrapping.
func FromInt(n int) Q1616 {
	v := int64(n) << fracBits
	if v > int64(maxValue) {
		return maxValue
	}
	if v < int64(minValue) {
		return minValue
	}
	return Q1616(v)
}

// F16 performs the compile-time literal conversion the original firmware's
// F16() macro does: a float64 constant to its nearest Q16.16 representation.
// It is meant for use with constant configuration values, not runtime data.
func F16(f float64) Q1616 {
	return Q1616(math.Round(f * float64(One)))
}

// Float64 converts back to a float64, for reporting and testing.
func (a Q1616) Float64() float64 {
	return float64(a) / float64(One)
}

// FromFloat converts a float64, already known to be in range, to Q16.16 by
// rounding to nearest. Callers needing overflow detection should range-check
// before calling (see internal/spectrum's quantizeFloat).
func FromFloat(f float64) Q1616 {
	return Q1616(math.Round(f * float64(One)))
}

// Mul computes a*b, rounding to nearest and setting errs on overflow.
// Grounded on fix16_mul in the original firmware: the product is formed in
// 64 bits, rounded, and range-checked before truncating to 32 bits.
func (a Q1616) Mul(b Q1616, errs *ErrorContext) Q1616 {
	product := int64(a) * int64(b)
	// Round to nearest by moving half an LSB (in the 64-bit product's
	// frame) away from zero, then dividing back down to Q16.16 with
	// truncation toward zero.
	if product >= 0 {
		product += 1 << (fracBits - 1)
	} else {
		product -= 1 << (fracBits - 1)
	}
	result := product / (1 << fracBits)
	if result > int64(maxValue) || result < int64(minValue) {
		errs.set()
		if result > int64(maxValue) {
			return maxValue
		}
		return minValue
	}
	return Q1616(result)
}

// Add computes a+b, setting errs on overflow.
func (a Q1616) Add(b Q1616, errs *ErrorContext) Q1616 {
	sum := int64(a) + int64(b)
	if sum > int64(maxValue) || sum < int64(minValue) {
		errs.set()
		if sum > int64(maxValue) {
			return maxValue
		}
		return minValue
	}
	return Q1616(sum)
}

// Sub computes a-b, setting errs on overflow.
func (a Q1616) Sub(b Q1616, errs *ErrorContext) Q1616 {
	return a.Add(b.Neg(errs), errs)
}

// Neg returns -a. Negating minValue would overflow; that case sets errs.
func (a Q1616) Neg(errs *ErrorContext) Q1616 {
	if a == minValue {
		errs.set()
		return maxValue
	}
	return -a
}

// Abs returns |a|.
func (a Q1616) Abs(errs *ErrorContext) Q1616 {
	if a < 0 {
		return a.Neg(errs)
	}
	return a
}

// Complex is a Q16.16 complex number, used for FFT bins and correlogram
// entries (ComplexFixed in the original firmware).
type Complex struct {
	Real, Imag Q1616
}
