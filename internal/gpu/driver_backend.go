package gpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/fxnlabs/gpu-smoke/internal/cuda"
	"github.com/fxnlabs/gpu-smoke/internal/fatbin"
	"go.uber.org/zap"
)

const floatBytes = 4

// DriverBackend implements GPUBackend by loading a module image through the
// CUDA driver API and launching its matmul entry point.
type DriverBackend struct {
	log     *zap.Logger
	drv     Driver
	image   *fatbin.Image
	kernel  string
	ordinal int
	block   cuda.Dim

	mu          sync.Mutex
	initialized bool
	device      cuda.Device
	ctx         cuda.Context
	deviceInfo  DeviceInfo
	kernels     *kernelCache
}

// DriverBackendConfig carries the launch parameters of a DriverBackend.
type DriverBackendConfig struct {
	Image   *fatbin.Image
	Kernel  string
	Ordinal int
	Block   cuda.Dim
}

// NewDriverBackend creates a backend bound to drv. Nothing is touched on the
// device until Initialize.
func NewDriverBackend(log *zap.Logger, drv Driver, cfg DriverBackendConfig) *DriverBackend {
	block := cfg.Block
	if block.X == 0 || block.Y == 0 {
		block = DefaultBlock
	}
	log = log.Named("cuda")
	return &DriverBackend{
		log:     log,
		drv:     drv,
		image:   cfg.Image,
		kernel:  cfg.Kernel,
		ordinal: cfg.Ordinal,
		block:   block,
		kernels: newKernelCache(log),
	}
}

// IsAvailable reports whether the driver initializes and exposes the
// configured device ordinal.
func (d *DriverBackend) IsAvailable() bool {
	if err := d.CheckAvailable(); err != nil {
		d.log.Debug("CUDA backend not available", zap.Error(err))
		return false
	}
	return true
}

// CheckAvailable is IsAvailable with the reason: the driver's Init or DeviceCount
// error, or ErrNoDevice when the ordinal is not present.
func (d *DriverBackend) CheckAvailable() error {
	if err := d.drv.Init(); err != nil {
		return fmt.Errorf("failed to initialize CUDA driver: %w", err)
	}
	count, err := d.drv.DeviceCount()
	if err != nil {
		return fmt.Errorf("failed to count CUDA devices: %w", err)
	}
	if d.ordinal < 0 || d.ordinal >= count {
		return fmt.Errorf("%w: ordinal %d, %d device(s) present", ErrNoDevice, d.ordinal, count)
	}
	return nil
}

// Initialize brings up the driver, selects the device, retains its primary
// context and loads the module image once to validate the entry point.
func (d *DriverBackend) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	if d.image == nil {
		return errors.New("CUDA backend: no module image configured")
	}
	if d.kernel == "" {
		return errors.New("CUDA backend: no kernel name configured")
	}
	if d.block.Threads() > maxThreadsPerBlock {
		return fmt.Errorf("CUDA backend: block %dx%d exceeds %d threads", d.block.X, d.block.Y, maxThreadsPerBlock)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := d.drv.Init(); err != nil {
		return fmt.Errorf("failed to initialize CUDA driver: %w", err)
	}
	count, err := d.drv.DeviceCount()
	if err != nil {
		return fmt.Errorf("failed to count CUDA devices: %w", err)
	}
	if count == 0 {
		return ErrNoDevice
	}
	if d.ordinal < 0 || d.ordinal >= count {
		return fmt.Errorf("%w: ordinal %d, %d device(s) present", ErrNoDevice, d.ordinal, count)
	}

	dev, err := d.drv.DeviceGet(d.ordinal)
	if err != nil {
		return fmt.Errorf("failed to get device %d: %w", d.ordinal, err)
	}
	info, err := d.queryDevice(dev)
	if err != nil {
		return err
	}

	ctx, err := d.drv.PrimaryCtxRetain(dev)
	if err != nil {
		return fmt.Errorf("failed to retain primary context: %w", err)
	}
	if err := d.drv.CtxSetCurrent(ctx); err != nil {
		_ = d.drv.PrimaryCtxRelease(dev)
		return fmt.Errorf("failed to set current context: %w", err)
	}

	// Load eagerly so a bad image or a missing entry point fails here and
	// not on the first multiply.
	if _, err := d.kernels.getOrLoad(d.drv, shapeKey{}, d.kernel, d.image.Data); err != nil {
		_ = d.drv.PrimaryCtxRelease(dev)
		return err
	}

	d.device = dev
	d.ctx = ctx
	d.deviceInfo = info
	d.initialized = true

	d.log.Info("CUDA backend initialized",
		zap.String("device", info.Name),
		zap.String("compute_capability", info.ComputeCapability),
		zap.Float64("total_memory_gb", float64(info.TotalMemory)/(1<<30)),
		zap.String("module", d.image.Name),
		zap.Stringer("module_kind", d.image.Kind),
		zap.String("module_checksum", fatbin.FormatChecksum(d.image.Checksum)),
		zap.String("kernel", d.kernel))
	return nil
}

func (d *DriverBackend) queryDevice(dev cuda.Device) (DeviceInfo, error) {
	name, err := d.drv.DeviceName(dev)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to get device name: %w", err)
	}
	total, err := d.drv.DeviceTotalMem(dev)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to get device memory: %w", err)
	}
	major, minor, err := d.drv.DeviceComputeCapability(dev)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to get compute capability: %w", err)
	}
	info := DeviceInfo{
		Name:              name,
		TotalMemory:       total,
		AvailableMemory:   total,
		ComputeCapability: fmt.Sprintf("%d.%d", major, minor),
		DriverVersion:     "unknown",
	}
	if v, err := d.drv.DriverVersion(); err == nil {
		info.DriverVersion = fmt.Sprintf("%d", v)
		info.CUDAVersion = formatCUDAVersion(v)
	}
	return info, nil
}

// formatCUDAVersion renders the driver's encoded version, e.g. 12040 as 12.4.
func formatCUDAVersion(v int) string {
	return fmt.Sprintf("%d.%d", v/1000, (v%1000)/10)
}

// MatrixMultiply runs C = A * B on the device. Buffers for A, B and C are
// allocated per call and freed in reverse order before returning.
func (d *DriverBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	if err := validateDims(a, b, m, k, n); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil, fmt.Errorf("CUDA backend: %w", ErrNotInitialized)
	}

	result := make([]float32, m*n)
	if len(result) == 0 {
		return result, nil
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := d.drv.CtxSetCurrent(d.ctx); err != nil {
		return nil, fmt.Errorf("failed to set current context: %w", err)
	}

	entry, err := d.kernels.getOrLoad(d.drv, shapeKey{m: m, n: n, k: k}, d.kernel, d.image.Data)
	if err != nil {
		return nil, err
	}

	dA, err := d.alloc(len(a))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate A: %w", err)
	}
	defer d.free(dA, "A")

	dB, err := d.alloc(len(b))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate B: %w", err)
	}
	defer d.free(dB, "B")

	dC, err := d.alloc(len(result))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate C: %w", err)
	}
	defer d.free(dC, "C")

	if err := d.drv.MemcpyHtoD(dA, a); err != nil {
		return nil, fmt.Errorf("failed to copy A to device: %w", err)
	}
	if err := d.drv.MemcpyHtoD(dB, b); err != nil {
		return nil, fmt.Errorf("failed to copy B to device: %w", err)
	}

	grid := GridFor(m, n, d.block)
	d.log.Debug("launching kernel",
		zap.String("kernel", d.kernel),
		zap.Int("m", m), zap.Int("k", k), zap.Int("n", n),
		zap.Uint32("grid_x", grid.X), zap.Uint32("grid_y", grid.Y),
		zap.Uint32("block_x", d.block.X), zap.Uint32("block_y", d.block.Y),
		zap.Int("flops", 2*m*k*n))

	if err := d.drv.LaunchMatMul(entry.function, grid, d.block, dA, dB, dC, m, n, k); err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", d.kernel, err)
	}
	if err := d.drv.CtxSynchronize(); err != nil {
		return nil, fmt.Errorf("kernel %s failed: %w", d.kernel, err)
	}
	if err := d.drv.MemcpyDtoH(result, dC); err != nil {
		return nil, fmt.Errorf("failed to copy C to host: %w", err)
	}
	return result, nil
}

// alloc reserves room for n floats. A zero-length operand still gets a
// one-element buffer so the kernel receives a valid pointer.
func (d *DriverBackend) alloc(n int) (cuda.DevicePtr, error) {
	if n == 0 {
		n = 1
	}
	return d.drv.MemAlloc(n * floatBytes)
}

func (d *DriverBackend) free(p cuda.DevicePtr, name string) {
	if err := d.drv.MemFree(p); err != nil {
		d.log.Warn("failed to free device buffer", zap.String("buffer", name), zap.Error(err))
	}
}

// GetDeviceInfo returns information about the selected device.
func (d *DriverBackend) GetDeviceInfo() DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceInfo
}

// CachedKernels returns the number of loaded modules.
func (d *DriverBackend) CachedKernels() int {
	return d.kernels.len()
}

// Cleanup unloads every module and releases the primary context.
func (d *DriverBackend) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil
	}
	d.log.Debug("cleaning up CUDA backend")

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var errs []error
	if err := d.drv.CtxSetCurrent(d.ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to set current context: %w", err))
	}
	if err := d.kernels.unloadAll(d.drv); err != nil {
		errs = append(errs, fmt.Errorf("failed to unload module: %w", err))
	}
	if err := d.drv.PrimaryCtxRelease(d.device); err != nil {
		errs = append(errs, fmt.Errorf("failed to release primary context: %w", err))
	}
	d.initialized = false
	return errors.Join(errs...)
}
