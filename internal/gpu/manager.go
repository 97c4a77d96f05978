package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxnlabs/gpu-smoke/internal/cuda"
	"github.com/fxnlabs/gpu-smoke/internal/fatbin"
	"go.uber.org/zap"
)

// BackendKind selects how the Manager picks a backend.
type BackendKind string

const (
	BackendAuto BackendKind = "auto"
	BackendCUDA BackendKind = "cuda"
	BackendCPU  BackendKind = "cpu"
)

// ParseBackendKind validates a backend name from config or flags.
func ParseBackendKind(s string) (BackendKind, error) {
	switch k := BackendKind(s); k {
	case BackendAuto, BackendCUDA, BackendCPU:
		return k, nil
	case "":
		return BackendAuto, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want auto, cuda or cpu)", s)
	}
}

// Options configures NewManager.
type Options struct {
	Kind    BackendKind
	Driver  Driver
	Image   *fatbin.Image
	Kernel  string
	Ordinal int
	Block   cuda.Dim
}

// Manager handles backend selection and lifecycle
type Manager struct {
	backend GPUBackend
	mu      sync.RWMutex
	log     *zap.Logger
}

// NewManager creates a manager and initializes the backend selected by
// opts.Kind. In auto mode a driver backend that fails to come up is cleaned
// up and replaced by the CPU backend.
func NewManager(log *zap.Logger, opts Options) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Kind == "" {
		opts.Kind = BackendAuto
	}
	if opts.Driver == nil {
		opts.Driver = cuda.Driver{}
	}

	m := &Manager{
		log: log,
	}
	if err := m.detectAndInitialize(opts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) detectAndInitialize(opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch opts.Kind {
	case BackendCPU:
		return m.useCPU()
	case BackendCUDA:
		backend, err := m.tryDriverBackend(opts)
		if err != nil {
			return err
		}
		m.backend = backend
		return nil
	case BackendAuto:
		backend, err := m.tryDriverBackend(opts)
		if err == nil {
			m.backend = backend
			return nil
		}
		m.log.Warn("CUDA backend unavailable, falling back to CPU", zap.Error(err))
		return m.useCPU()
	default:
		return fmt.Errorf("unknown backend %q", opts.Kind)
	}
}

func (m *Manager) tryDriverBackend(opts Options) (GPUBackend, error) {
	backend := NewDriverBackend(m.log, opts.Driver, DriverBackendConfig{
		Image:   opts.Image,
		Kernel:  opts.Kernel,
		Ordinal: opts.Ordinal,
		Block:   opts.Block,
	})
	if err := backend.CheckAvailable(); err != nil {
		return nil, fmt.Errorf("CUDA backend: %w", err)
	}
	if err := backend.Initialize(); err != nil {
		_ = backend.Cleanup()
		return nil, err
	}
	return backend, nil
}

func (m *Manager) useCPU() error {
	cpuBackend := NewCPUBackend(m.log)
	if err := cpuBackend.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize CPU backend: %w", err)
	}
	m.backend = cpuBackend
	return nil
}

// GetBackend returns the current backend
func (m *Manager) GetBackend() GPUBackend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// MatrixMultiply performs matrix multiplication using the selected backend
func (mgr *Manager) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	backend := mgr.GetBackend()
	if backend == nil {
		return nil, errors.New("no backend available")
	}
	return backend.MatrixMultiply(a, b, m, k, n)
}

// GetDeviceInfo returns device information from the current backend
func (m *Manager) GetDeviceInfo() DeviceInfo {
	backend := m.GetBackend()
	if backend == nil {
		return DeviceInfo{Name: "No backend available"}
	}
	return backend.GetDeviceInfo()
}

// IsGPUAvailable returns true if a GPU backend is active
func (m *Manager) IsGPUAvailable() bool {
	_, ok := m.GetBackend().(*DriverBackend)
	return ok
}

// Cleanup releases resources held by the current backend
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		if err := m.backend.Cleanup(); err != nil {
			return err
		}
		m.backend = nil
	}
	return nil
}

// GetBackendType returns a string describing the current backend type
func (m *Manager) GetBackendType() string {
	switch m.GetBackend().(type) {
	case nil:
		return "none"
	case *CPUBackend:
		return string(BackendCPU)
	case *DriverBackend:
		return string(BackendCUDA)
	default:
		return "unknown"
	}
}
