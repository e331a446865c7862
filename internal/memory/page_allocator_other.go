//go:build !linux && !darwin

package memory

import (
	"fmt"
	"os"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
)

// PageAllocator falls back to page aligned heap blocks on platforms without
// anonymous mappings.
type PageAllocator struct {
	pageSize int
	heap     GoAllocator
}

// NewPageAllocator returns a page allocator using the system page size.
func NewPageAllocator() *PageAllocator {
	return &PageAllocator{pageSize: os.Getpagesize()}
}

// PageSize returns the block alignment.
func (a *PageAllocator) PageSize() int {
	return a.pageSize
}

// Allocate returns a page aligned heap block.
func (a *PageAllocator) Allocate(l Layout) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Align > a.pageSize {
		return nil, fmt.Errorf("%w: alignment %d exceeds page size %d", apperrors.ErrInvalidLayout, l.Align, a.pageSize)
	}
	return a.heap.Allocate(Layout{Size: l.Size, Align: a.pageSize})
}

// AllocateZeroed is Allocate.
func (a *PageAllocator) AllocateZeroed(l Layout) ([]byte, error) {
	return a.Allocate(l)
}

// Deallocate leaves the block to the garbage collector.
func (a *PageAllocator) Deallocate(b []byte, l Layout) {}

var _ Allocator = (*PageAllocator)(nil)
