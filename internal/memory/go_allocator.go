package memory

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
)

// GoAllocator hands out blocks from the Go heap. Alignment is obtained by
// over-allocating and shifting the slice; Deallocate leaves the block to the
// garbage collector, so the bytes stay in the heap until it is reused.
type GoAllocator struct{}

// NewGoAllocator returns a heap backed allocator.
func NewGoAllocator() *GoAllocator { return &GoAllocator{} }

// Allocate returns a block of l.Size bytes aligned to l.Align.
func (a *GoAllocator) Allocate(l Layout) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Size == 0 {
		return []byte{}, nil
	}
	if l.Size > math.MaxInt-l.Align {
		return nil, fmt.Errorf("%w: %s exceeds the address space", apperrors.ErrOutOfMemory, l)
	}

	buf, err := makeBlock(l.Size + l.Align - 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrOutOfMemory, l, err)
	}
	shift := alignShift(uintptr(unsafe.Pointer(unsafe.SliceData(buf))), l.Align)
	return buf[shift : shift+l.Size : shift+l.Size], nil
}

// makeBlock turns the runtime's "makeslice: len out of range" panic for requests
// above the heap's size limit into an error.
func makeBlock(n int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			err = rerr
		}
	}()
	return make([]byte, n), nil
}

// AllocateZeroed is Allocate; the Go heap always returns zeroed memory.
func (a *GoAllocator) AllocateZeroed(l Layout) ([]byte, error) {
	return a.Allocate(l)
}

// Deallocate is a no-op.
func (a *GoAllocator) Deallocate(b []byte, l Layout) {}

var _ Allocator = (*GoAllocator)(nil)
