// Package cuda wraps the subset of the CUDA driver API needed to load a
// precompiled module and launch a matrix-multiply kernel.
//
// The bindings are compiled only with the `cuda` build tag. Without it every
// call returns ErrNotAvailable so the rest of the tree builds on machines with
// no CUDA toolkit.
package cuda

import (
	"errors"
	"fmt"
)

// Device is a driver device ordinal handle.
type Device int

// Context is an opaque driver context handle.
type Context uintptr

// Module is an opaque handle to a loaded module.
type Module uintptr

// Function is an opaque handle to a kernel entry point.
type Function uintptr

// DevicePtr is an address in device memory.
type DevicePtr uint64

// Dim is a two dimensional launch extent. Z is always 1.
type Dim struct {
	X uint32
	Y uint32
}

// Threads returns the number of threads in a block of this shape.
func (d Dim) Threads() int {
	return int(d.X) * int(d.Y)
}

// Result is a CUresult status code.
type Result int

const (
	Success                   Result = 0
	ErrorInvalidValue         Result = 1
	ErrorOutOfMemory          Result = 2
	ErrorNotInitialized       Result = 3
	ErrorDeinitialized        Result = 4
	ErrorInsufficientDriver   Result = 35
	ErrorNoDevice             Result = 100
	ErrorInvalidDevice        Result = 101
	ErrorInvalidImage         Result = 200
	ErrorInvalidContext       Result = 201
	ErrorNoBinaryForGPU       Result = 209
	ErrorInvalidPTX           Result = 218
	ErrorFileNotFound         Result = 301
	ErrorInvalidHandle        Result = 400
	ErrorNotFound             Result = 500
	ErrorIllegalAddress       Result = 700
	ErrorLaunchOutOfResources Result = 701
	ErrorLaunchTimeout        Result = 702
	ErrorLaunchFailed         Result = 719
	ErrorNotSupported         Result = 801
	ErrorSystemDriverMismatch Result = 803
	ErrorUnknown              Result = 999
)

// ErrNotAvailable is returned by every call when the binary was built
// without CUDA support.
var ErrNotAvailable = errors.New("cuda: driver support not compiled in (build with -tags cuda)")

var resultNames = map[Result][2]string{
	Success:                   {"CUDA_SUCCESS", "no error"},
	ErrorInvalidValue:         {"CUDA_ERROR_INVALID_VALUE", "invalid argument"},
	ErrorOutOfMemory:          {"CUDA_ERROR_OUT_OF_MEMORY", "out of memory"},
	ErrorNotInitialized:       {"CUDA_ERROR_NOT_INITIALIZED", "initialization error"},
	ErrorDeinitialized:        {"CUDA_ERROR_DEINITIALIZED", "driver shutting down"},
	ErrorInsufficientDriver:   {"CUDA_ERROR_INSUFFICIENT_DRIVER", "driver version is insufficient"},
	ErrorNoDevice:             {"CUDA_ERROR_NO_DEVICE", "no CUDA-capable device is detected"},
	ErrorInvalidDevice:        {"CUDA_ERROR_INVALID_DEVICE", "invalid device ordinal"},
	ErrorInvalidImage:         {"CUDA_ERROR_INVALID_IMAGE", "device kernel image is invalid"},
	ErrorInvalidContext:       {"CUDA_ERROR_INVALID_CONTEXT", "invalid device context"},
	ErrorNoBinaryForGPU:       {"CUDA_ERROR_NO_BINARY_FOR_GPU", "no kernel image is available for execution on the device"},
	ErrorInvalidPTX:           {"CUDA_ERROR_INVALID_PTX", "a PTX JIT compilation failed"},
	ErrorFileNotFound:         {"CUDA_ERROR_FILE_NOT_FOUND", "file not found"},
	ErrorInvalidHandle:        {"CUDA_ERROR_INVALID_HANDLE", "invalid resource handle"},
	ErrorNotFound:             {"CUDA_ERROR_NOT_FOUND", "named symbol not found"},
	ErrorIllegalAddress:       {"CUDA_ERROR_ILLEGAL_ADDRESS", "an illegal memory access was encountered"},
	ErrorLaunchOutOfResources: {"CUDA_ERROR_LAUNCH_OUT_OF_RESOURCES", "too many resources requested for launch"},
	ErrorLaunchTimeout:        {"CUDA_ERROR_LAUNCH_TIMEOUT", "the launch timed out and was terminated"},
	ErrorLaunchFailed:         {"CUDA_ERROR_LAUNCH_FAILED", "unspecified launch failure"},
	ErrorNotSupported:         {"CUDA_ERROR_NOT_SUPPORTED", "operation not supported"},
	ErrorSystemDriverMismatch: {"CUDA_ERROR_SYSTEM_DRIVER_MISMATCH", "system has unsupported display driver / cuda driver combination"},
	ErrorUnknown:              {"CUDA_ERROR_UNKNOWN", "unknown error"},
}

// Error is a failed driver call.
type Error struct {
	Op      string
	Code    Result
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s, code %d)", e.Op, e.Message, e.Name, int(e.Code))
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Op == "" || t.Op == e.Op)
}

// Err converts a status into an error attributed to op. Success yields nil.
func (r Result) Err(op string) error {
	if r == Success {
		return nil
	}
	name, msg := describe(r)
	return &Error{Op: op, Code: r, Name: name, Message: msg}
}

func (r Result) String() string {
	name, _ := staticDescribe(r)
	return name
}

func staticDescribe(r Result) (string, string) {
	if d, ok := resultNames[r]; ok {
		return d[0], d[1]
	}
	return fmt.Sprintf("CUDA_ERROR_%d", int(r)), "unrecognized error code"
}
