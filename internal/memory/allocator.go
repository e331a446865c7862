// Package memory provides explicitly managed byte blocks and the zero-on-free
// allocator that guarantees released blocks hold no residual data.
//
// Blocks are plain []byte values. The block's data pointer together with the
// Layout it was requested with identifies it; Deallocate always operates on
// Layout.Size bytes from that pointer, even if the caller resliced the block.
package memory

import "unsafe"

// Allocator is the allocation contract shared by every backend and wrapper.
//
// Deallocate must be called with a block obtained from the same Allocator and the
// exact Layout used to request it. Anything else is undefined behavior.
type Allocator interface {
	Allocate(l Layout) ([]byte, error)
	AllocateZeroed(l Layout) ([]byte, error)
	Deallocate(b []byte, l Layout)
}

// Reallocator is implemented by allocators that provide their own resize.
type Reallocator interface {
	Reallocate(b []byte, old Layout, newSize int) ([]byte, error)
}

// Reallocate resizes b to newSize bytes using a's own Reallocate when it has one
// and allocate, copy and deallocate otherwise.
func Reallocate(a Allocator, b []byte, old Layout, newSize int) ([]byte, error) {
	if r, ok := a.(Reallocator); ok {
		return r.Reallocate(b, old, newSize)
	}
	return reallocate(a, b, old, newSize)
}

func reallocate(a Allocator, b []byte, old Layout, newSize int) ([]byte, error) {
	if newSize == old.Size {
		return unsafe.Slice(unsafe.SliceData(b), newSize), nil
	}

	nb, err := a.Allocate(old.WithSize(newSize))
	if err != nil {
		return nil, err
	}
	copy(nb, unsafe.Slice(unsafe.SliceData(b), min(old.Size, newSize)))
	a.Deallocate(b, old)
	return nb, nil
}

// defaultAllocator is built once and never replaced.
var defaultAllocator Allocator = NewZeroOnFree(NewGoAllocator())

// Default returns the process-wide zero-on-free allocator backed by the Go heap.
//
// Default is safe to use from multiple goroutines.
func Default() Allocator {
	return defaultAllocator
}
