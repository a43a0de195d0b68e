package arena

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAlignsAndTracksPeak(t *testing.T) {
	a := New(64)

	b1, err := a.Alloc(3)
	require.NoError(t, err)
	assert.Len(t, b1, 3)
	assert.Equal(t, 3, a.Len())

	b2, err := a.Alloc(8)
	require.NoError(t, err)
	assert.Equal(t, 0, int(uintptr(unsafe.Pointer(&b2[0]))%align), "second allocation is aligned")
	assert.Equal(t, 16, a.Len())

	a.Reset()
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 16, a.Peak())
	assert.Equal(t, 64, a.Cap())
}

func TestAllocZeroesReusedMemory(t *testing.T) {
	a := New(16)
	b, err := a.Alloc(16)
	require.NoError(t, err)
	for i := range b {
		b[i] = 0xff
	}
	a.Reset()

	b, err = a.Alloc(16)
	require.NoError(t, err)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %#x after reset, want 0", i, v)
		}
	}
}

func TestAllocExhausted(t *testing.T) {
	a := New(10)
	_, err := a.Alloc(11)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 0, a.Len(), "failed allocation does not consume space")
}

func TestBudgetIsIndependentOfBackingGrowth(t *testing.T) {
	a := New(32)
	for range 4 {
		_, err := a.Alloc(8)
		require.NoError(t, err)
	}
	_, err := a.Alloc(1)
	assert.ErrorIs(t, err, ErrExhausted)

	a.Reset()
	_, err = a.Alloc(32)
	assert.NoError(t, err, "reset restores the whole budget")
}

func TestRelease(t *testing.T) {
	a := New(64)
	_, err := a.Alloc(16)
	require.NoError(t, err)
	a.Release()
	assert.Zero(t, a.Len())
	_, err = a.Alloc(1)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestMakeSlice(t *testing.T) {
	type vertex struct{ X, Y, U, V float32 }

	a := New(1024)
	vs, err := MakeSlice[vertex](a, 8)
	require.NoError(t, err)
	assert.Len(t, vs, 8)
	assert.Equal(t, 8*16, a.Len())

	vs[7] = vertex{1, 2, 3, 4}
	assert.Equal(t, float32(4), vs[7].V)

	_, err = MakeSlice[vertex](a, 1000)
	assert.ErrorIs(t, err, ErrExhausted)

	heap, err := MakeSlice[vertex](nil, 4)
	require.NoError(t, err)
	assert.Len(t, heap, 4)
}
