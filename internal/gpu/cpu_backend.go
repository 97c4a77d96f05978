package gpu

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
)

// CPUBackend implements GPUBackend on the host for fallback
type CPUBackend struct {
	log         *zap.Logger
	initialized bool
}

// NewCPUBackend creates a new CPU backend instance
func NewCPUBackend(log *zap.Logger) *CPUBackend {
	return &CPUBackend{
		log: log.Named("cpu"),
	}
}

// Initialize prepares the CPU backend for use
func (c *CPUBackend) Initialize() error {
	if c.initialized {
		return nil
	}
	c.initialized = true
	c.log.Info("CPU backend initialized", zap.Strings("features", cpuFeatures()))
	return nil
}

// Cleanup releases any resources (none for CPU backend)
func (c *CPUBackend) Cleanup() error {
	c.initialized = false
	return nil
}

// IsAvailable checks if the backend is available (always true for CPU)
func (c *CPUBackend) IsAvailable() bool {
	return true
}

// GetDeviceInfo returns device information for CPU
func (c *CPUBackend) GetDeviceInfo() DeviceInfo {
	info := DeviceInfo{
		Name:              fmt.Sprintf("CPU (%s, %d cores)", runtime.GOARCH, runtime.NumCPU()),
		ComputeCapability: "N/A",
		DriverVersion:     runtime.Version(),
		Features:          cpuFeatures(),
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		c.log.Debug("failed to query system memory", zap.Error(err))
		return info
	}
	info.TotalMemory = int64(vm.Total)
	info.AvailableMemory = int64(vm.Available)
	return info
}

// MatrixMultiply performs matrix multiplication on the host
// Implements C = A * B where A is m×k, B is k×n, and C is m×n
func (c *CPUBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	if !c.initialized {
		return nil, fmt.Errorf("CPU backend: %w", ErrNotInitialized)
	}
	if err := validateDims(a, b, m, k, n); err != nil {
		return nil, err
	}

	result := make([]float32, m*n)

	// i-l-j order keeps the inner loop walking both B and C contiguously
	for i := 0; i < m; i++ {
		row := result[i*n : (i+1)*n]
		for l := 0; l < k; l++ {
			av := a[i*k+l]
			bRow := b[l*n : (l+1)*n]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	}

	return result, nil
}

// cpuFeatures lists the SIMD extensions relevant to float32 GEMM.
func cpuFeatures() []string {
	var features []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasAVX2 {
			features = append(features, "avx2")
		}
		if cpu.X86.HasFMA {
			features = append(features, "fma")
		}
		if cpu.X86.HasAVX512F {
			features = append(features, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "asimd")
		}
		if cpu.ARM64.HasFPHP {
			features = append(features, "fphp")
		}
	}
	return features
}
