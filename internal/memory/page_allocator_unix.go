//go:build linux || darwin

package memory

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
)

// PageAllocator maps every block as its own anonymous private mapping and unmaps
// it on Deallocate, returning the pages to the operating system.
type PageAllocator struct {
	pageSize int
}

// NewPageAllocator returns a page allocator using the system page size.
func NewPageAllocator() *PageAllocator {
	return &PageAllocator{pageSize: unix.Getpagesize()}
}

// PageSize returns the mapping granularity.
func (a *PageAllocator) PageSize() int {
	return a.pageSize
}

func (a *PageAllocator) mappedLen(size int) int {
	return (size + a.pageSize - 1) &^ (a.pageSize - 1)
}

// Allocate maps enough pages for l.Size bytes. Mappings are page aligned, so any
// alignment up to the page size is satisfied.
func (a *PageAllocator) Allocate(l Layout) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Align > a.pageSize {
		return nil, fmt.Errorf("%w: alignment %d exceeds page size %d", apperrors.ErrInvalidLayout, l.Align, a.pageSize)
	}
	if l.Size == 0 {
		return []byte{}, nil
	}

	n := a.mappedLen(l.Size)
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w: %w", n, apperrors.ErrOutOfMemory, err)
	}
	return data[:l.Size:l.Size], nil
}

// AllocateZeroed is Allocate; anonymous mappings are zero filled by the kernel.
func (a *PageAllocator) AllocateZeroed(l Layout) ([]byte, error) {
	return a.Allocate(l)
}

// Deallocate unmaps the pages backing b. It panics if the kernel rejects the
// unmap, which only happens when b or l do not describe a live mapping.
func (a *PageAllocator) Deallocate(b []byte, l Layout) {
	if l.Size == 0 {
		return
	}
	mapped := unsafe.Slice(unsafe.SliceData(b), a.mappedLen(l.Size))
	if err := unix.Munmap(mapped); err != nil {
		panic(fmt.Sprintf("memory: munmap %d bytes: %v", len(mapped), err))
	}
}

var _ Allocator = (*PageAllocator)(nil)
