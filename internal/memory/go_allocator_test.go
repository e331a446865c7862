package memory

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
)

func TestGoAllocator_Allocate(t *testing.T) {
	a := NewGoAllocator()

	t.Run("Success_Alignment", func(t *testing.T) {
		for _, align := range []int{1, 8, 16, 64, 256} {
			b, err := a.Allocate(Layout{Size: 100, Align: align})
			require.NoError(t, err)
			assert.Len(t, b, 100)
			assert.Equal(t, 100, cap(b))
			assert.Zero(t, uintptr(unsafe.Pointer(unsafe.SliceData(b)))%uintptr(align), "align %d", align)
		}
	})

	t.Run("Success_ZeroSize", func(t *testing.T) {
		b, err := a.Allocate(Layout{Size: 0, Align: 8})
		require.NoError(t, err)
		assert.NotNil(t, b)
		assert.Empty(t, b)
	})

	t.Run("Success_Zeroed", func(t *testing.T) {
		b, err := a.AllocateZeroed(LayoutOf(512))
		require.NoError(t, err)
		assert.True(t, IsZero(unsafe.SliceData(b), len(b)))
	})

	t.Run("Error_InvalidLayout", func(t *testing.T) {
		_, err := a.Allocate(Layout{Size: 8, Align: 3})
		assert.ErrorIs(t, err, apperrors.ErrInvalidLayout)
	})

	t.Run("Error_OutOfMemory_Overflow", func(t *testing.T) {
		b, err := a.Allocate(Layout{Size: math.MaxInt - 8, Align: 16})
		assert.ErrorIs(t, err, apperrors.ErrOutOfMemory)
		assert.Nil(t, b)
	})

	t.Run("Error_OutOfMemory_AboveHeapLimit", func(t *testing.T) {
		if unsafe.Sizeof(uintptr(0)) < 8 {
			t.Skip("heap limit is only below MaxInt/2 on 64-bit platforms")
		}
		var b []byte
		var err error
		require.NotPanics(t, func() {
			b, err = a.Allocate(Layout{Size: math.MaxInt / 2, Align: 16})
		})
		assert.ErrorIs(t, err, apperrors.ErrOutOfMemory)
		assert.Nil(t, b)
	})

	t.Run("Error_OutOfMemory_ThroughDefault", func(t *testing.T) {
		if unsafe.Sizeof(uintptr(0)) < 8 {
			t.Skip("heap limit is only below MaxInt/2 on 64-bit platforms")
		}
		_, err := Default().Allocate(Layout{Size: math.MaxInt / 2, Align: 16})
		assert.ErrorIs(t, err, apperrors.ErrOutOfMemory)
	})
}

func TestGoAllocator_DeallocateLeavesBytes(t *testing.T) {
	a := NewGoAllocator()
	l := LayoutOf(4)
	b, err := a.Allocate(l)
	require.NoError(t, err)
	copy(b, []byte{1, 2, 3, 4})

	a.Deallocate(b, l)

	assert.Equal(t, []byte{1, 2, 3, 4}, b)
}
