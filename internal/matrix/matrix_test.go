package matrix

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	a := Sequence(4, 3)
	assert.Equal(t, 4, a.Rows)
	assert.Equal(t, 3, a.Cols)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, a.Data)
	assert.Equal(t, float32(6), a.At(1, 2))
	assert.Equal(t, "4x3", a.Shape())
}

func TestRandom(t *testing.T) {
	a := Random(16, 16, 42)
	b := Random(16, 16, 42)
	c := Random(16, 16, 43)

	assert.Equal(t, a.Data, b.Data, "same seed must give same matrix")
	assert.NotEqual(t, a.Data, c.Data)
	for i, v := range a.Data {
		if v < 1 || v >= 255 {
			t.Fatalf("value %v at index %d outside [1, 255)", v, i)
		}
	}
}

func TestFromSlice(t *testing.T) {
	m, err := FromSlice(2, 2, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, float32(3), m.At(1, 0))

	_, err = FromSlice(2, 3, []float32{1, 2, 3, 4})
	assert.Error(t, err)

	_, err = FromSlice(-1, 3, nil)
	assert.Error(t, err)
}

func TestReference(t *testing.T) {
	t.Run("smoke inputs", func(t *testing.T) {
		c, err := Reference(Sequence(4, 3), Sequence(3, 2))
		require.NoError(t, err)
		assert.Equal(t, 4, c.Rows)
		assert.Equal(t, 2, c.Cols)
		assert.Equal(t, []float32{22, 28, 49, 64, 76, 100, 103, 136}, c.Data)
	})

	t.Run("2x3 times 3x2", func(t *testing.T) {
		a, _ := FromSlice(2, 3, []float32{1, 2, 3, 4, 5, 6})
		b, _ := FromSlice(3, 2, []float32{7, 8, 9, 10, 11, 12})
		c, err := Reference(a, b)
		require.NoError(t, err)
		assert.Equal(t, []float32{58, 64, 139, 154}, c.Data)
	})

	t.Run("identity", func(t *testing.T) {
		a := Sequence(4, 4)
		id := New(4, 4)
		for i := 0; i < 4; i++ {
			id.Data[i*4+i] = 1
		}
		c, err := Reference(a, id)
		require.NoError(t, err)
		assert.Equal(t, a.Data, c.Data)
	})

	t.Run("zero inner dimension", func(t *testing.T) {
		c, err := Reference(New(2, 0), New(0, 3))
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, c.Data)
	})

	t.Run("incompatible shapes", func(t *testing.T) {
		_, err := Reference(Sequence(2, 3), Sequence(2, 3))
		assert.Error(t, err)
	})
}

func TestCompare(t *testing.T) {
	assert.NoError(t, Compare([]float32{1, 2, 3}, []float32{1, 2.00001, 3}, 1e-4))
	assert.Error(t, Compare([]float32{1, 2}, []float32{1, 2, 3}, 1e-4))

	err := Compare([]float32{1, 5, 3, 9}, []float32{1, 2, 3, 4}, 1e-4)
	require.Error(t, err)

	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Len(t, mismatch.Mismatches, 2)
	assert.Equal(t, Mismatch{Index: 1, Got: 5, Want: 2}, mismatch.Mismatches[0])
	assert.Equal(t, Mismatch{Index: 3, Got: 9, Want: 4}, mismatch.Mismatches[1])
	assert.Contains(t, err.Error(), "diff at index 3: got 9, expected 4")
}

func TestCompareScalesWithMagnitude(t *testing.T) {
	// float32 spacing near 2.2e7 is 2
	assert.NoError(t, Compare([]float32{2.211638e+07}, []float32{2.2116384e+07}, 1e-4))
	assert.Error(t, Compare([]float32{2.2e+07}, []float32{2.2116384e+07}, 1e-4))

	// below 1 the bound stays absolute
	assert.NoError(t, Compare([]float32{0.00005}, []float32{0}, 1e-4))
	assert.Error(t, Compare([]float32{0.0002}, []float32{0}, 1e-4))
}

func TestFreivalds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a := Random(32, 24, 1)
	b := Random(24, 16, 2)
	c, err := Reference(a, b)
	require.NoError(t, err)

	assert.True(t, Freivalds(a, b, c, 10, 1e-5, rng))

	bad := New(c.Rows, c.Cols)
	copy(bad.Data, c.Data)
	bad.Data[5] += 1000
	assert.False(t, Freivalds(a, b, bad, 20, 1e-5, rng))

	assert.False(t, Freivalds(a, b, New(3, 3), 1, 1e-5, rng), "shape mismatch")
}

func TestFormat(t *testing.T) {
	c, err := Reference(Sequence(4, 3), Sequence(3, 2))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Format(&buf, c))

	expected := "result C =\n" +
		"22.000000 28.000000 \n" +
		"49.000000 64.000000 \n" +
		"76.000000 100.000000 \n" +
		"103.000000 136.000000 \n"
	assert.Equal(t, expected, buf.String())
}

func TestConversions(t *testing.T) {
	in := []float64{1, 2.5, -3}
	assert.Equal(t, []float32{1, 2.5, -3}, ToFloat32(in))
	assert.Equal(t, in, ToFloat64([]float32{1, 2.5, -3}))
}
