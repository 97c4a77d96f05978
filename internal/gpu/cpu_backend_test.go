package gpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCPUBackend_Initialize(t *testing.T) {
	backend := NewCPUBackend(zaptest.NewLogger(t))

	// CPU backend should always be available
	assert.True(t, backend.IsAvailable())

	err := backend.Initialize()
	assert.NoError(t, err)
	assert.True(t, backend.initialized)

	info := backend.GetDeviceInfo()
	assert.Contains(t, info.Name, "CPU")
	assert.Greater(t, info.TotalMemory, int64(0))
	assert.Equal(t, "N/A", info.ComputeCapability)

	// Test double initialization (should be idempotent)
	assert.NoError(t, backend.Initialize())

	assert.NoError(t, backend.Cleanup())
	assert.False(t, backend.initialized)
}

func TestCPUBackend_MatrixMultiply(t *testing.T) {
	backend := NewCPUBackend(zaptest.NewLogger(t))
	require.NoError(t, backend.Initialize())
	defer backend.Cleanup()

	testCases := []struct {
		name        string
		a, b        []float32
		m, k, n     int
		expected    []float32
		expectError bool
	}{
		{
			name: "smoke 4x3 by 3x2",
			a:    []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			b:    []float32{1, 2, 3, 4, 5, 6},
			m:    4, k: 3, n: 2,
			expected: []float32{22, 28, 49, 64, 76, 100, 103, 136},
		},
		{
			name: "2x3 by 3x2",
			a:    []float32{1, 2, 3, 4, 5, 6},
			b:    []float32{7, 8, 9, 10, 11, 12},
			m:    2, k: 3, n: 2,
			expected: []float32{58, 64, 139, 154},
		},
		{
			name: "identity",
			a:    []float32{1, 0, 0, 1},
			b:    []float32{5, 6, 7, 8},
			m:    2, k: 2, n: 2,
			expected: []float32{5, 6, 7, 8},
		},
		{
			name: "inner dimension zero",
			a:    nil,
			b:    nil,
			m:    2, k: 0, n: 2,
			expected: []float32{0, 0, 0, 0},
		},
		{
			name: "A size mismatch",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3, 4},
			m:    2, k: 2, n: 2,
			expectError: true,
		},
		{
			name: "negative dimension",
			m:    -1, k: 0, n: 2,
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := backend.MatrixMultiply(tc.a, tc.b, tc.m, tc.k, tc.n)
			if tc.expectError {
				assert.ErrorIs(t, err, ErrInvalidDimensions)
				return
			}
			require.NoError(t, err)
			require.Len(t, c, len(tc.expected))
			for i := range c {
				assert.InDelta(t, tc.expected[i], c[i], 1e-6, "index %d", i)
			}
		})
	}
}

func TestCPUBackend_NotInitialized(t *testing.T) {
	backend := NewCPUBackend(zaptest.NewLogger(t))
	_, err := backend.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestCPUBackend_LargeMatrix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large matrix test in short mode")
	}
	backend := NewCPUBackend(zaptest.NewLogger(t))
	require.NoError(t, backend.Initialize())
	defer backend.Cleanup()

	const size = 128
	a := make([]float32, size*size)
	b := make([]float32, size*size)
	for i := 0; i < size; i++ {
		a[i*size+i] = 2
		for j := 0; j < size; j++ {
			b[i*size+j] = float32(i + j)
		}
	}

	c, err := backend.MatrixMultiply(a, b, size, size, size)
	require.NoError(t, err)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			want := 2 * float32(i+j)
			if math.Abs(float64(c[i*size+j]-want)) > 1e-4 {
				t.Fatalf("mismatch at [%d][%d]: got %f, want %f", i, j, c[i*size+j], want)
			}
		}
	}
}
