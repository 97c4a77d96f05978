//go:build !cuda
// +build !cuda

package cuda

// Available reports whether driver bindings are compiled in.
func Available() bool { return false }

func describe(r Result) (string, string) {
	return staticDescribe(r)
}

func Init() error { return ErrNotAvailable }

func DriverVersion() (int, error) { return 0, ErrNotAvailable }

func DeviceCount() (int, error) { return 0, ErrNotAvailable }

func DeviceGet(int) (Device, error) { return 0, ErrNotAvailable }

func DeviceName(Device) (string, error) { return "", ErrNotAvailable }

func DeviceTotalMem(Device) (int64, error) { return 0, ErrNotAvailable }

func DeviceComputeCapability(Device) (int, int, error) { return 0, 0, ErrNotAvailable }

func PrimaryCtxRetain(Device) (Context, error) { return 0, ErrNotAvailable }

func PrimaryCtxRelease(Device) error { return ErrNotAvailable }

func CtxSetCurrent(Context) error { return ErrNotAvailable }

func CtxSynchronize() error { return ErrNotAvailable }

func ModuleLoadData([]byte) (Module, error) { return 0, ErrNotAvailable }

func ModuleUnload(Module) error { return ErrNotAvailable }

func ModuleGetFunction(Module, string) (Function, error) { return 0, ErrNotAvailable }

func MemAlloc(int) (DevicePtr, error) { return 0, ErrNotAvailable }

func MemFree(DevicePtr) error { return ErrNotAvailable }

func MemcpyHtoD(DevicePtr, []float32) error { return ErrNotAvailable }

func MemcpyDtoH([]float32, DevicePtr) error { return ErrNotAvailable }

func LaunchMatMul(Function, Dim, Dim, DevicePtr, DevicePtr, DevicePtr, int, int, int) error {
	return ErrNotAvailable
}
