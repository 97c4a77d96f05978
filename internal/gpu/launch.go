package gpu

import "github.com/fxnlabs/gpu-smoke/internal/cuda"

// DefaultBlock is the 16×16 thread block used by the matmul kernel.
var DefaultBlock = cuda.Dim{X: 16, Y: 16}

// maxThreadsPerBlock is the limit shared by every CUDA architecture since sm_20.
const maxThreadsPerBlock = 1024

// GridFor returns the launch grid covering an m×n output with one thread per
// cell: x spans columns, y spans rows. Each extent is at least 1.
func GridFor(m, n int, block cuda.Dim) cuda.Dim {
	return cuda.Dim{
		X: ceilDiv(n, block.X),
		Y: ceilDiv(m, block.Y),
	}
}

func ceilDiv(v int, d uint32) uint32 {
	if v <= 0 || d == 0 {
		return 1
	}
	q := (uint32(v) + d - 1) / d
	if q == 0 {
		return 1
	}
	return q
}
