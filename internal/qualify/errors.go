package qualify

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when the ADC fill loop is cancelled before
// a full qualification run can be collected.
var ErrInsufficientData = errors.New("qualify: ADC fill cancelled before run completed")

// QualificationError reports a failed qualification run, carrying the
// verdict bitset that identifies which statistical tests failed (spec §7
// "report failure").
type QualificationError struct {
	Verdict Verdict
}

func (e *QualificationError) Error() string {
	return fmt.Sprintf("qualify: run failed statistical tests: %s", e.Verdict)
}

// Is supports errors.Is(err, ErrQualificationFailed) without requiring
// callers to know the specific Verdict.
func (e *QualificationError) Is(target error) bool {
	return target == ErrQualificationFailed
}

// ErrQualificationFailed is the sentinel matched by QualificationError.Is.
var ErrQualificationFailed = errors.New("qualify: qualification failed")
