package matrix

import (
	"fmt"
	"io"
)

// Format writes m under a "result C =" header, one row per line with every
// value printed as "%f ".
func Format(w io.Writer, m *Matrix) error {
	if _, err := fmt.Fprintln(w, "result C ="); err != nil {
		return err
	}
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			if _, err := fmt.Fprintf(w, "%f ", m.At(i, j)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
