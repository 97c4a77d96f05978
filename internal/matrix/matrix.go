// Package matrix holds the host-side buffers of the smoke test and the
// reference math used to check device results.
package matrix

import (
	"fmt"
	"math/rand/v2"
)

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// New returns a zeroed rows×cols matrix.
func New(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// FromSlice wraps data as a rows×cols matrix without copying.
func FromSlice(rows, cols int, data []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid matrix shape %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("matrix size mismatch: expected %d, got %d", rows*cols, len(data))
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// Sequence returns a matrix whose i-th element in row-major order is i+1.
func Sequence(rows, cols int) *Matrix {
	m := New(rows, cols)
	for i := range m.Data {
		m.Data[i] = float32(i + 1)
	}
	return m
}

// Random returns a matrix of values in [1, 255) drawn from a generator
// seeded with seed, so equal seeds give equal matrices.
func Random(rows, cols int, seed uint64) *Matrix {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	m := New(rows, cols)
	for i := range m.Data {
		m.Data[i] = 1 + rng.Float32()*254
	}
	return m
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Shape returns "rowsxcols".
func (m *Matrix) Shape() string {
	return fmt.Sprintf("%dx%d", m.Rows, m.Cols)
}
