package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Reference computes a×b on the host in float64 and rounds the result back
// to float32.
func Reference(a, b *Matrix) (*Matrix, error) {
	if a.Cols != b.Rows {
		return nil, fmt.Errorf("matrix dimensions are not compatible for multiplication: %s * %s", a.Shape(), b.Shape())
	}
	c := New(a.Rows, b.Cols)
	if len(c.Data) == 0 || a.Cols == 0 {
		return c, nil
	}

	da := mat.NewDense(a.Rows, a.Cols, ToFloat64(a.Data))
	db := mat.NewDense(b.Rows, b.Cols, ToFloat64(b.Data))

	var res mat.Dense
	res.Mul(da, db)

	// res is freshly allocated, so its stride equals its column count.
	c.Data = ToFloat32(res.RawMatrix().Data)
	return c, nil
}
