package cuda

// Driver exposes the package functions as methods so callers can depend on
// an interface and substitute a fake in tests.
type Driver struct{}

func (Driver) Init() error { return Init() }

func (Driver) DriverVersion() (int, error) { return DriverVersion() }

func (Driver) DeviceCount() (int, error) { return DeviceCount() }

func (Driver) DeviceGet(ordinal int) (Device, error) { return DeviceGet(ordinal) }

func (Driver) DeviceName(dev Device) (string, error) { return DeviceName(dev) }

func (Driver) DeviceTotalMem(dev Device) (int64, error) { return DeviceTotalMem(dev) }

func (Driver) DeviceComputeCapability(dev Device) (int, int, error) {
	return DeviceComputeCapability(dev)
}

func (Driver) PrimaryCtxRetain(dev Device) (Context, error) { return PrimaryCtxRetain(dev) }

func (Driver) PrimaryCtxRelease(dev Device) error { return PrimaryCtxRelease(dev) }

func (Driver) CtxSetCurrent(ctx Context) error { return CtxSetCurrent(ctx) }

func (Driver) CtxSynchronize() error { return CtxSynchronize() }

func (Driver) ModuleLoadData(image []byte) (Module, error) { return ModuleLoadData(image) }

func (Driver) ModuleUnload(mod Module) error { return ModuleUnload(mod) }

func (Driver) ModuleGetFunction(mod Module, name string) (Function, error) {
	return ModuleGetFunction(mod, name)
}

func (Driver) MemAlloc(bytes int) (DevicePtr, error) { return MemAlloc(bytes) }

func (Driver) MemFree(p DevicePtr) error { return MemFree(p) }

func (Driver) MemcpyHtoD(dst DevicePtr, src []float32) error { return MemcpyHtoD(dst, src) }

func (Driver) MemcpyDtoH(dst []float32, src DevicePtr) error { return MemcpyDtoH(dst, src) }

func (Driver) LaunchMatMul(fn Function, grid, block Dim, a, b, c DevicePtr, m, n, k int) error {
	return LaunchMatMul(fn, grid, block, a, b, c, m, n, k)
}
