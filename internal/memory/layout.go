package memory

import (
	"fmt"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
)

// DefaultAlignment is the alignment used by LayoutOf.
const DefaultAlignment = 16

// Layout describes a memory request. The same Layout must be passed to Deallocate
// that was passed to the call which produced the block.
type Layout struct {
	Size  int
	Align int
}

// NewLayout returns a validated Layout.
func NewLayout(size, align int) (Layout, error) {
	l := Layout{Size: size, Align: align}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// LayoutOf returns a Layout of size bytes with DefaultAlignment.
func LayoutOf(size int) Layout {
	return Layout{Size: size, Align: DefaultAlignment}
}

// Validate checks that the size is not negative and the alignment is a power of two.
func (l Layout) Validate() error {
	if l.Size < 0 {
		return fmt.Errorf("%w: negative size %d", apperrors.ErrInvalidLayout, l.Size)
	}
	if l.Align <= 0 || l.Align&(l.Align-1) != 0 {
		return fmt.Errorf("%w: alignment %d is not a power of two", apperrors.ErrInvalidLayout, l.Align)
	}
	return nil
}

// WithSize returns a copy of l with a different size and the same alignment.
func (l Layout) WithSize(size int) Layout {
	return Layout{Size: size, Align: l.Align}
}

func (l Layout) String() string {
	return fmt.Sprintf("%d/%d", l.Size, l.Align)
}

// alignShift returns how far addr must move forward to be a multiple of align.
func alignShift(addr uintptr, align int) int {
	mask := uintptr(align - 1)
	return int(((addr + mask) &^ mask) - addr)
}
