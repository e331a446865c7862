package memory

import "unsafe"

// ZeroOnFree wraps an Allocator and overwrites every block with zeros before the
// inner allocator gets it back. It holds no mutable state, so it is exactly as
// safe for concurrent use as the allocator it wraps.
type ZeroOnFree struct {
	inner Allocator
}

// NewZeroOnFree returns a ZeroOnFree over inner.
func NewZeroOnFree(inner Allocator) *ZeroOnFree {
	return &ZeroOnFree{inner: inner}
}

// Inner returns the wrapped allocator.
func (z *ZeroOnFree) Inner() Allocator {
	return z.inner
}

// Allocate delegates to the inner allocator. The content of the block is whatever
// the inner allocator produced.
func (z *ZeroOnFree) Allocate(l Layout) ([]byte, error) {
	return z.inner.Allocate(l)
}

// AllocateZeroed delegates to the inner allocator's zeroing primitive. Fresh
// memory is never wiped here.
func (z *ZeroOnFree) AllocateZeroed(l Layout) ([]byte, error) {
	return z.inner.AllocateZeroed(l)
}

// Deallocate zeroes l.Size bytes of b while the block is still owned by the
// caller and only then hands it to the inner allocator.
func (z *ZeroOnFree) Deallocate(b []byte, l Layout) {
	Wipe(unsafe.SliceData(b), l.Size)
	z.inner.Deallocate(b, l)
}

// Reallocate moves the block to a fresh allocation of newSize bytes and releases
// the old one through Deallocate, so the old block is always zeroed. A request
// for the current size returns b untouched.
func (z *ZeroOnFree) Reallocate(b []byte, old Layout, newSize int) ([]byte, error) {
	return reallocate(z, b, old, newSize)
}

var (
	_ Allocator   = (*ZeroOnFree)(nil)
	_ Reallocator = (*ZeroOnFree)(nil)
)
