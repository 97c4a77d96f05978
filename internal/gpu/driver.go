package gpu

import "github.com/fxnlabs/gpu-smoke/internal/cuda"

// Driver is the subset of the CUDA driver API used by DriverBackend.
// cuda.Driver satisfies it; tests substitute a fake.
type Driver interface {
	Init() error
	DriverVersion() (int, error)
	DeviceCount() (int, error)
	DeviceGet(ordinal int) (cuda.Device, error)
	DeviceName(dev cuda.Device) (string, error)
	DeviceTotalMem(dev cuda.Device) (int64, error)
	DeviceComputeCapability(dev cuda.Device) (int, int, error)

	PrimaryCtxRetain(dev cuda.Device) (cuda.Context, error)
	PrimaryCtxRelease(dev cuda.Device) error
	CtxSetCurrent(ctx cuda.Context) error
	CtxSynchronize() error

	ModuleLoadData(image []byte) (cuda.Module, error)
	ModuleUnload(mod cuda.Module) error
	ModuleGetFunction(mod cuda.Module, name string) (cuda.Function, error)

	MemAlloc(bytes int) (cuda.DevicePtr, error)
	MemFree(p cuda.DevicePtr) error
	MemcpyHtoD(dst cuda.DevicePtr, src []float32) error
	MemcpyDtoH(dst []float32, src cuda.DevicePtr) error

	LaunchMatMul(fn cuda.Function, grid, block cuda.Dim, a, b, c cuda.DevicePtr, m, n, k int) error
}

var _ Driver = cuda.Driver{}
