package matrix

import (
	"fmt"
	"math"
	"strings"
)

// Mismatch is one element outside tolerance.
type Mismatch struct {
	Index int
	Got   float32
	Want  float32
}

// MismatchError reports every element of a result that differs from the
// expected value by more than Epsilon relative to max(1, |expected|).
type MismatchError struct {
	Epsilon    float64
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d element(s) differ by more than %g (relative)", len(e.Mismatches), e.Epsilon)
	for _, m := range e.Mismatches {
		fmt.Fprintf(&sb, "\ndiff at index %d: got %v, expected %v", m.Index, m.Got, m.Want)
	}
	return sb.String()
}

// Compare checks got against want element by element. The allowed error of
// each element is epsilon*max(1, |want|), so large float32 products are
// held to their representable precision.
func Compare(got, want []float32, epsilon float64) error {
	if len(got) != len(want) {
		return fmt.Errorf("result and expected lengths don't match: %d != %d", len(got), len(want))
	}
	var mismatches []Mismatch
	for i := range got {
		diff := math.Abs(float64(got[i]) - float64(want[i]))
		if diff > epsilon*math.Max(1, math.Abs(float64(want[i]))) || math.IsNaN(diff) {
			mismatches = append(mismatches, Mismatch{Index: i, Got: got[i], Want: want[i]})
		}
	}
	if len(mismatches) > 0 {
		return &MismatchError{Epsilon: epsilon, Mismatches: mismatches}
	}
	return nil
}
