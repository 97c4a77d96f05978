package gpu

import (
	"sync"

	"github.com/fxnlabs/gpu-smoke/internal/cuda"
)

// fakeDriver emulates the driver API in host memory. Launches run the
// kernel's per-thread body over the whole grid, so a grid that is too small
// leaves cells of C untouched.
type fakeDriver struct {
	mu sync.Mutex

	devices  int
	name     string
	totalMem int64

	calls   []string
	mem     map[cuda.DevicePtr][]float32
	nextPtr cuda.DevicePtr
	modules map[cuda.Module]bool
	nextMod cuda.Module
	entry   string

	allocs []cuda.DevicePtr
	freed  []cuda.DevicePtr

	lastGrid  cuda.Dim
	lastBlock cuda.Dim
	launches  int

	// failOn makes the failAt-th (1-based, 0 means every) invocation of
	// the named call return failErr.
	failOn  string
	failAt  int
	failErr error
	seen    map[string]int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		devices:  1,
		name:     "Fake GPU",
		totalMem: 8 << 30,
		mem:      make(map[cuda.DevicePtr][]float32),
		nextPtr:  0x1000,
		modules:  make(map[cuda.Module]bool),
		nextMod:  1,
		entry:    "ll_matmul_gpu",
		seen:     make(map[string]int),
	}
}

func (f *fakeDriver) record(call string) error {
	f.calls = append(f.calls, call)
	f.seen[call]++
	if f.failOn == call && (f.failAt == 0 || f.failAt == f.seen[call]) {
		if f.failErr != nil {
			return f.failErr
		}
		return cuda.ErrorUnknown.Err(call)
	}
	return nil
}

func (f *fakeDriver) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDriver) liveAllocations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mem)
}

func (f *fakeDriver) loadedModules() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.modules)
}

func (f *fakeDriver) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("Init")
}

func (f *fakeDriver) DriverVersion() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return 12040, f.record("DriverVersion")
}

func (f *fakeDriver) DeviceCount() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeviceCount"); err != nil {
		return 0, err
	}
	return f.devices, nil
}

func (f *fakeDriver) DeviceGet(ordinal int) (cuda.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeviceGet"); err != nil {
		return 0, err
	}
	if ordinal >= f.devices {
		return 0, cuda.ErrorInvalidDevice.Err("cuDeviceGet")
	}
	return cuda.Device(ordinal), nil
}

func (f *fakeDriver) DeviceName(cuda.Device) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name, f.record("DeviceName")
}

func (f *fakeDriver) DeviceTotalMem(cuda.Device) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalMem, f.record("DeviceTotalMem")
}

func (f *fakeDriver) DeviceComputeCapability(cuda.Device) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return 8, 6, f.record("DeviceComputeCapability")
}

func (f *fakeDriver) PrimaryCtxRetain(cuda.Device) (cuda.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PrimaryCtxRetain"); err != nil {
		return 0, err
	}
	return cuda.Context(0xC0), nil
}

func (f *fakeDriver) PrimaryCtxRelease(cuda.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("PrimaryCtxRelease")
}

func (f *fakeDriver) CtxSetCurrent(cuda.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("CtxSetCurrent")
}

func (f *fakeDriver) CtxSynchronize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("CtxSynchronize")
}

func (f *fakeDriver) ModuleLoadData(image []byte) (cuda.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ModuleLoadData"); err != nil {
		return 0, err
	}
	if len(image) == 0 {
		return 0, cuda.ErrorInvalidImage.Err("cuModuleLoadData")
	}
	mod := f.nextMod
	f.nextMod++
	f.modules[mod] = true
	return mod, nil
}

func (f *fakeDriver) ModuleUnload(mod cuda.Module) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ModuleUnload"); err != nil {
		return err
	}
	delete(f.modules, mod)
	return nil
}

func (f *fakeDriver) ModuleGetFunction(mod cuda.Module, name string) (cuda.Function, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ModuleGetFunction"); err != nil {
		return 0, err
	}
	if name != f.entry {
		return 0, cuda.ErrorNotFound.Err("cuModuleGetFunction")
	}
	return cuda.Function(uintptr(mod) << 8), nil
}

func (f *fakeDriver) MemAlloc(bytes int) (cuda.DevicePtr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MemAlloc"); err != nil {
		return 0, err
	}
	p := f.nextPtr
	f.nextPtr += cuda.DevicePtr(bytes)
	f.mem[p] = make([]float32, bytes/4)
	f.allocs = append(f.allocs, p)
	return p, nil
}

func (f *fakeDriver) MemFree(p cuda.DevicePtr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mem[p]; !ok {
		return cuda.ErrorInvalidValue.Err("cuMemFree")
	}
	delete(f.mem, p)
	f.freed = append(f.freed, p)
	return f.record("MemFree")
}

func (f *fakeDriver) MemcpyHtoD(dst cuda.DevicePtr, src []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MemcpyHtoD"); err != nil {
		return err
	}
	buf, ok := f.mem[dst]
	if !ok || len(buf) < len(src) {
		return cuda.ErrorInvalidValue.Err("cuMemcpyHtoD")
	}
	copy(buf, src)
	return nil
}

func (f *fakeDriver) MemcpyDtoH(dst []float32, src cuda.DevicePtr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MemcpyDtoH"); err != nil {
		return err
	}
	buf, ok := f.mem[src]
	if !ok || len(buf) < len(dst) {
		return cuda.ErrorInvalidValue.Err("cuMemcpyDtoH")
	}
	copy(dst, buf)
	return nil
}

func (f *fakeDriver) LaunchMatMul(fn cuda.Function, grid, block cuda.Dim, a, b, c cuda.DevicePtr, m, n, k int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("LaunchMatMul"); err != nil {
		return err
	}
	if fn == 0 {
		return cuda.ErrorInvalidHandle.Err("cuLaunchKernel")
	}
	f.lastGrid, f.lastBlock = grid, block
	f.launches++

	da, db, dc := f.mem[a], f.mem[b], f.mem[c]
	for by := 0; by < int(grid.Y); by++ {
		for bx := 0; bx < int(grid.X); bx++ {
			for ty := 0; ty < int(block.Y); ty++ {
				for tx := 0; tx < int(block.X); tx++ {
					row := by*int(block.Y) + ty
					col := bx*int(block.X) + tx
					if row >= m || col >= n {
						continue
					}
					var sum float32
					for l := 0; l < k; l++ {
						sum += da[row*k+l] * db[l*n+col]
					}
					dc[row*n+col] = sum
				}
			}
		}
	}
	return nil
}

var _ Driver = (*fakeDriver)(nil)
