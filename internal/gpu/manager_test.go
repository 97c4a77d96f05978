package gpu

import (
	"testing"

	"github.com/fxnlabs/gpu-smoke/internal/cuda"
	"github.com/fxnlabs/gpu-smoke/internal/fatbin"
	"github.com/fxnlabs/gpu-smoke/kernels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func managerOptions(kind BackendKind, drv Driver) Options {
	return Options{
		Kind:   kind,
		Driver: drv,
		Image:  fatbin.Embedded(),
		Kernel: kernels.EntryPoint,
	}
}

func TestParseBackendKind(t *testing.T) {
	for in, want := range map[string]BackendKind{
		"":     BackendAuto,
		"auto": BackendAuto,
		"cuda": BackendCUDA,
		"cpu":  BackendCPU,
	} {
		got, err := ParseBackendKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseBackendKind("metal")
	assert.Error(t, err)
}

func TestManager_SelectsDriverBackend(t *testing.T) {
	drv := newFakeDriver()
	manager, err := NewManager(zaptest.NewLogger(t), managerOptions(BackendAuto, drv))
	require.NoError(t, err)

	assert.Equal(t, "cuda", manager.GetBackendType())
	assert.True(t, manager.IsGPUAvailable())
	assert.Equal(t, "Fake GPU", manager.GetDeviceInfo().Name)

	a, b := smokeInputs()
	c, err := manager.MatrixMultiply(a, b, 4, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{22, 28, 49, 64, 76, 100, 103, 136}, c)

	require.NoError(t, manager.Cleanup())
	assert.Nil(t, manager.GetBackend())
	assert.Equal(t, "none", manager.GetBackendType())
	assert.Contains(t, drv.callLog(), "PrimaryCtxRelease")
	assert.Zero(t, drv.loadedModules())
}

func TestManager_AutoFallsBackToCPU(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(*fakeDriver)
	}{
		{"no device", func(f *fakeDriver) { f.devices = 0 }},
		{"init fails", func(f *fakeDriver) { f.failOn = "Init" }},
		{"module rejected", func(f *fakeDriver) { f.failOn = "ModuleLoadData" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			drv := newFakeDriver()
			tc.setup(drv)

			manager, err := NewManager(zaptest.NewLogger(t), managerOptions(BackendAuto, drv))
			require.NoError(t, err)
			defer manager.Cleanup()

			assert.Equal(t, "cpu", manager.GetBackendType())
			assert.False(t, manager.IsGPUAvailable())

			a, b := smokeInputs()
			c, err := manager.MatrixMultiply(a, b, 4, 3, 2)
			require.NoError(t, err)
			assert.Equal(t, []float32{22, 28, 49, 64, 76, 100, 103, 136}, c)
		})
	}
}

func TestManager_ForcedCUDAFails(t *testing.T) {
	drv := newFakeDriver()
	drv.failOn = "ModuleGetFunction"

	_, err := NewManager(zaptest.NewLogger(t), managerOptions(BackendCUDA, drv))
	assert.ErrorIs(t, err, &cuda.Error{Code: cuda.ErrorUnknown})
	assert.Zero(t, drv.loadedModules())
}

func TestManager_ForcedCUDAReportsDriverError(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(*fakeDriver)
		want  error
	}{
		{
			name:  "no device",
			setup: func(f *fakeDriver) { f.devices = 0 },
			want:  ErrNoDevice,
		},
		{
			name: "init fails",
			setup: func(f *fakeDriver) {
				f.failOn = "Init"
				f.failErr = cuda.ErrorInsufficientDriver.Err("cuInit")
			},
			want: &cuda.Error{Code: cuda.ErrorInsufficientDriver},
		},
		{
			name: "driver support missing",
			setup: func(f *fakeDriver) {
				f.failOn = "Init"
				f.failErr = cuda.ErrNotAvailable
			},
			want: cuda.ErrNotAvailable,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			drv := newFakeDriver()
			tc.setup(drv)

			_, err := NewManager(zaptest.NewLogger(t), managerOptions(BackendCUDA, drv))
			assert.ErrorIs(t, err, tc.want)
			if tc.want != cuda.ErrNotAvailable {
				assert.NotErrorIs(t, err, cuda.ErrNotAvailable)
			}
		})
	}
}

func TestManager_ForcedCPU(t *testing.T) {
	drv := newFakeDriver()
	manager, err := NewManager(zaptest.NewLogger(t), managerOptions(BackendCPU, drv))
	require.NoError(t, err)
	defer manager.Cleanup()

	assert.Equal(t, "cpu", manager.GetBackendType())
	assert.Empty(t, drv.callLog(), "the driver is never touched")
}

func TestManager_NoBackend(t *testing.T) {
	manager := &Manager{}
	_, err := manager.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
	assert.Error(t, err)
	assert.Equal(t, "No backend available", manager.GetDeviceInfo().Name)
	assert.NoError(t, manager.Cleanup())
}
