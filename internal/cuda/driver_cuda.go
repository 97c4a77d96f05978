//go:build cuda
// +build cuda

package cuda

/*
#cgo LDFLAGS: -lcuda
#include <cuda.h>
#include <stdlib.h>

// The argument array holds addresses of the by-value copies below, so it is
// built on the C stack instead of passing Go memory that contains pointers.
static CUresult launch_matmul(CUfunction f,
		unsigned int gx, unsigned int gy,
		unsigned int bx, unsigned int by,
		CUdeviceptr a, CUdeviceptr b, CUdeviceptr c,
		int m, int n, int k) {
	void *args[] = { &a, &b, &c, &m, &n, &k };
	return cuLaunchKernel(f, gx, gy, 1, bx, by, 1, 0, NULL, args, NULL);
}

static const char *result_name(CUresult r) {
	const char *s = NULL;
	if (cuGetErrorName(r, &s) != CUDA_SUCCESS) {
		return NULL;
	}
	return s;
}

static const char *result_string(CUresult r) {
	const char *s = NULL;
	if (cuGetErrorString(r, &s) != CUDA_SUCCESS) {
		return NULL;
	}
	return s;
}
*/
import "C"
import (
	"unsafe"
)

const floatSize = 4

// Available reports whether driver bindings are compiled in.
func Available() bool { return true }

func describe(r Result) (string, string) {
	name, msg := staticDescribe(r)
	if s := C.result_name(C.CUresult(r)); s != nil {
		name = C.GoString(s)
	}
	if s := C.result_string(C.CUresult(r)); s != nil {
		msg = C.GoString(s)
	}
	return name, msg
}

func check(r C.CUresult, op string) error {
	return Result(r).Err(op)
}

func (c Context) c() C.CUcontext { return C.CUcontext(unsafe.Pointer(uintptr(c))) }
func (m Module) c() C.CUmodule { return C.CUmodule(unsafe.Pointer(uintptr(m))) }
func (f Function) c() C.CUfunction { return C.CUfunction(unsafe.Pointer(uintptr(f))) }

// Init initializes the driver API. It must precede any other call.
func Init() error {
	return check(C.cuInit(0), "cuInit")
}

// DriverVersion returns the installed driver's CUDA version, e.g. 12040.
func DriverVersion() (int, error) {
	var v C.int
	if err := check(C.cuDriverGetVersion(&v), "cuDriverGetVersion"); err != nil {
		return 0, err
	}
	return int(v), nil
}

// DeviceCount returns the number of visible devices.
func DeviceCount() (int, error) {
	var n C.int
	if err := check(C.cuDeviceGetCount(&n), "cuDeviceGetCount"); err != nil {
		return 0, err
	}
	return int(n), nil
}

// DeviceGet returns the device handle for an ordinal.
func DeviceGet(ordinal int) (Device, error) {
	var d C.CUdevice
	if err := check(C.cuDeviceGet(&d, C.int(ordinal)), "cuDeviceGet"); err != nil {
		return 0, err
	}
	return Device(d), nil
}

// DeviceName returns the marketing name of dev.
func DeviceName(dev Device) (string, error) {
	var name [256]C.char
	if err := check(C.cuDeviceGetName(&name[0], C.int(len(name)), C.CUdevice(dev)), "cuDeviceGetName"); err != nil {
		return "", err
	}
	return C.GoString(&name[0]), nil
}

// DeviceTotalMem returns the global memory size of dev in bytes.
func DeviceTotalMem(dev Device) (int64, error) {
	var bytes C.size_t
	if err := check(C.cuDeviceTotalMem(&bytes, C.CUdevice(dev)), "cuDeviceTotalMem"); err != nil {
		return 0, err
	}
	return int64(bytes), nil
}

// DeviceComputeCapability returns the SM version of dev.
func DeviceComputeCapability(dev Device) (int, int, error) {
	var major, minor C.int
	err := check(C.cuDeviceGetAttribute(&major, C.CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MAJOR, C.CUdevice(dev)),
		"cuDeviceGetAttribute(COMPUTE_CAPABILITY_MAJOR)")
	if err != nil {
		return 0, 0, err
	}
	err = check(C.cuDeviceGetAttribute(&minor, C.CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MINOR, C.CUdevice(dev)),
		"cuDeviceGetAttribute(COMPUTE_CAPABILITY_MINOR)")
	if err != nil {
		return 0, 0, err
	}
	return int(major), int(minor), nil
}

// PrimaryCtxRetain retains the primary context of dev.
func PrimaryCtxRetain(dev Device) (Context, error) {
	var ctx C.CUcontext
	if err := check(C.cuDevicePrimaryCtxRetain(&ctx, C.CUdevice(dev)), "cuDevicePrimaryCtxRetain"); err != nil {
		return 0, err
	}
	return Context(uintptr(unsafe.Pointer(ctx))), nil
}

// PrimaryCtxRelease drops the reference taken by PrimaryCtxRetain.
func PrimaryCtxRelease(dev Device) error {
	return check(C.cuDevicePrimaryCtxRelease(C.CUdevice(dev)), "cuDevicePrimaryCtxRelease")
}

// CtxSetCurrent binds ctx to the calling OS thread.
func CtxSetCurrent(ctx Context) error {
	return check(C.cuCtxSetCurrent(ctx.c()), "cuCtxSetCurrent")
}

// CtxSynchronize blocks until all work in the current context completes.
func CtxSynchronize() error {
	return check(C.cuCtxSynchronize(), "cuCtxSynchronize")
}

// ModuleLoadData loads a fatbin, cubin or PTX image into the current context.
func ModuleLoadData(image []byte) (Module, error) {
	if len(image) == 0 {
		return 0, ErrorInvalidImage.Err("cuModuleLoadData")
	}
	// PTX images must be NUL terminated.
	buf := C.malloc(C.size_t(len(image) + 1))
	defer C.free(buf)
	dst := unsafe.Slice((*byte)(buf), len(image)+1)
	copy(dst, image)
	dst[len(image)] = 0

	var mod C.CUmodule
	if err := check(C.cuModuleLoadData(&mod, buf), "cuModuleLoadData"); err != nil {
		return 0, err
	}
	return Module(uintptr(unsafe.Pointer(mod))), nil
}

// ModuleUnload unloads mod from the current context.
func ModuleUnload(mod Module) error {
	return check(C.cuModuleUnload(mod.c()), "cuModuleUnload")
}

// ModuleGetFunction resolves a kernel entry point by name.
func ModuleGetFunction(mod Module, name string) (Function, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var fn C.CUfunction
	if err := check(C.cuModuleGetFunction(&fn, mod.c(), cname), "cuModuleGetFunction"); err != nil {
		return 0, err
	}
	return Function(uintptr(unsafe.Pointer(fn))), nil
}

// MemAlloc allocates bytes of device memory.
func MemAlloc(bytes int) (DevicePtr, error) {
	var p C.CUdeviceptr
	if err := check(C.cuMemAlloc(&p, C.size_t(bytes)), "cuMemAlloc"); err != nil {
		return 0, err
	}
	return DevicePtr(p), nil
}

// MemFree releases memory obtained from MemAlloc.
func MemFree(p DevicePtr) error {
	return check(C.cuMemFree(C.CUdeviceptr(p)), "cuMemFree")
}

// MemcpyHtoD copies src into device memory at dst.
func MemcpyHtoD(dst DevicePtr, src []float32) error {
	if len(src) == 0 {
		return nil
	}
	return check(C.cuMemcpyHtoD(C.CUdeviceptr(dst), unsafe.Pointer(&src[0]), C.size_t(len(src)*floatSize)), "cuMemcpyHtoD")
}

// MemcpyDtoH copies len(dst) floats from device memory at src.
func MemcpyDtoH(dst []float32, src DevicePtr) error {
	if len(dst) == 0 {
		return nil
	}
	return check(C.cuMemcpyDtoH(unsafe.Pointer(&dst[0]), C.CUdeviceptr(src), C.size_t(len(dst)*floatSize)), "cuMemcpyDtoH")
}

// LaunchMatMul launches fn with the (a, b, c, m, n, k) calling convention on
// the default stream. The launch is asynchronous.
func LaunchMatMul(fn Function, grid, block Dim, a, b, c DevicePtr, m, n, k int) error {
	return check(C.launch_matmul(fn.c(),
		C.uint(grid.X), C.uint(grid.Y),
		C.uint(block.X), C.uint(block.Y),
		C.CUdeviceptr(a), C.CUdeviceptr(b), C.CUdeviceptr(c),
		C.int(m), C.int(n), C.int(k)), "cuLaunchKernel")
}
