// Package kernels provides the embedded PTX fallback for the matrix-multiply
// entry point, used when no precompiled fatbin is configured.
package kernels

import _ "embed"

// EntryPoint is the kernel symbol every matmul module must export. It takes
// (a, b, c *float32, m, n, k int32) with row-major A (m×k), B (k×n), C (m×n).
const EntryPoint = "ll_matmul_gpu"

// DefaultFatbin is the precompiled module the smoke test loads by default.
const DefaultFatbin = "matmul_for_gpu.fatbin"

// MatMulPTX is the PTX source of a naive one-thread-per-cell kernel.
//
//go:embed matmul.ptx
var MatMulPTX []byte
