package gpu

import (
	"errors"
	"fmt"
)

// DeviceInfo contains information about the compute device
type DeviceInfo struct {
	Name              string   `json:"name"`
	TotalMemory       int64    `json:"totalMemory"`     // in bytes
	AvailableMemory   int64    `json:"availableMemory"` // in bytes
	ComputeCapability string   `json:"computeCapability"`
	DriverVersion     string   `json:"driverVersion"`
	CUDAVersion       string   `json:"cudaVersion,omitempty"`
	Features          []string `json:"features,omitempty"`
}

// GPUBackend defines the interface for matrix-multiply backends.
//
// Implementation notes:
// - Backends manage device memory internally; callers pass host slices
// - Fallback to CPU is the Manager's job, not the backend's
// - Cleanup must release every driver resource the backend acquired
type GPUBackend interface {
	// MatrixMultiply performs matrix multiplication C = A * B
	// where A is m×k, B is k×n, and C is m×n, all row-major.
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)

	// GetDeviceInfo returns information about the device
	GetDeviceInfo() DeviceInfo

	// IsAvailable performs a quick check without heavy initialization
	IsAvailable() bool

	// Initialize prepares the backend for use. Calling it twice is a no-op.
	Initialize() error

	// Cleanup releases any resources held by the backend
	Cleanup() error
}

func validateDims(a, b []float32, m, k, n int) error {
	if m < 0 || k < 0 || n < 0 {
		return fmt.Errorf("%w: negative dimension (m=%d, k=%d, n=%d)", ErrInvalidDimensions, m, k, n)
	}
	if len(a) != m*k {
		return fmt.Errorf("%w: matrix A size mismatch: expected %d, got %d", ErrInvalidDimensions, m*k, len(a))
	}
	if len(b) != k*n {
		return fmt.Errorf("%w: matrix B size mismatch: expected %d, got %d", ErrInvalidDimensions, k*n, len(b))
	}
	return nil
}

var (
	// ErrInvalidDimensions is returned when buffer lengths disagree with the shape.
	ErrInvalidDimensions = errors.New("invalid matrix dimensions")
	// ErrNoDevice is returned when the driver reports zero devices or the
	// requested ordinal is out of range.
	ErrNoDevice = errors.New("no CUDA device available")
	// ErrNotInitialized is returned when a backend is used before Initialize.
	ErrNotInitialized = errors.New("backend not initialized")
)
