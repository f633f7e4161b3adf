package qualify

import "strings"

// Verdict is the statistical test verdict bitset of spec §3: bit positions
// 0-7 correspond to mean, variance, skewness, kurtosis, peak frequency,
// bandwidth, autocorrelation, and entropy tests. The zero value is Pass.
type Verdict uint8

const (
	VerdictMean Verdict = 1 << iota
	VerdictVariance
	VerdictSkewness
	VerdictKurtosis
	VerdictPeakFrequency
	VerdictBandwidth
	VerdictAutocorrelation
	VerdictEntropy
)

var verdictNames = [8]string{
	"mean", "variance", "skewness", "kurtosis",
	"peak-frequency", "bandwidth", "autocorrelation", "entropy",
}

// Pass reports whether no test bit is set.
func (v Verdict) Pass() bool { return v == 0 }

// Failed tests returns the names of the tests that failed, in bit order.
func (v Verdict) FailedTests() []string {
	var names []string
	for i, name := range verdictNames {
		if v&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return names
}

// Summary renders the per-bit pass/fail letter grid the original firmware's
// on-device display shows: "p" for each passing test bit, "F" for each
// failing one, low bit first.
func (v Verdict) Summary() string {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		if v&(1<<uint(i)) == 0 {
			b.WriteByte('p')
		} else {
			b.WriteByte('F')
		}
	}
	return b.String()
}

func (v Verdict) String() string {
	if v.Pass() {
		return "PASS"
	}
	return "FAIL(" + strings.Join(v.FailedTests(), ",") + ")"
}
