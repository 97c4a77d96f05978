package matrix

import (
	"math"
	"math/rand/v2"
)

// Freivalds probabilistically verifies that c = a×b without recomputing the
// product. Each iteration draws a random 0/1 vector r and checks a(br) = cr.
// A wrong c passes a single iteration with probability at most 1/2.
//
// tolerance is relative to the magnitude of cr, since float32 products of
// large matrices carry rounding error.
func Freivalds(a, b, c *Matrix, iterations int, tolerance float64, rng *rand.Rand) bool {
	if a.Cols != b.Rows || c.Rows != a.Rows || c.Cols != b.Cols {
		return false
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	r := make([]float64, b.Cols)
	for i := 0; i < iterations; i++ {
		for j := range r {
			r[j] = float64(rng.IntN(2))
		}

		br := mulVec(b, r)
		abr := mulVec(a, br)
		cr := mulVec(c, r)

		for j := range abr {
			diff := math.Abs(abr[j] - cr[j])
			if diff > tolerance*math.Max(1, math.Abs(cr[j])) || math.IsNaN(diff) {
				return false
			}
		}
	}
	return true
}

func mulVec(m *Matrix, v []float64) []float64 {
	out := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		row := m.Data[i*m.Cols : (i+1)*m.Cols]
		sum := 0.0
		for j, x := range row {
			sum += float64(x) * v[j]
		}
		out[i] = sum
	}
	return out
}
