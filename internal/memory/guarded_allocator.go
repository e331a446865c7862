package memory

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/awnumar/memguard"
)

// GuardedAllocator backs every block with a memguard locked buffer: the pages are
// locked into RAM, surrounded by guard pages and destroyed on Deallocate.
//
// memguard aborts the process when it cannot lock memory, so Allocate never
// reports exhaustion as an error.
type GuardedAllocator struct {
	mu      sync.Mutex
	buffers map[*byte]*memguard.LockedBuffer
}

// NewGuardedAllocator returns an allocator over memguard locked buffers.
func NewGuardedAllocator() *GuardedAllocator {
	return &GuardedAllocator{buffers: make(map[*byte]*memguard.LockedBuffer)}
}

// Allocate returns l.Size bytes inside a fresh locked buffer, aligned to l.Align.
func (a *GuardedAllocator) Allocate(l Layout) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Size == 0 {
		return []byte{}, nil
	}

	buf := memguard.NewBuffer(l.Size + l.Align - 1)
	data := buf.Bytes()
	shift := alignShift(uintptr(unsafe.Pointer(unsafe.SliceData(data))), l.Align)
	block := data[shift : shift+l.Size : shift+l.Size]

	a.mu.Lock()
	a.buffers[unsafe.SliceData(block)] = buf
	a.mu.Unlock()

	return block, nil
}

// AllocateZeroed is Allocate; locked buffers are created zero filled.
func (a *GuardedAllocator) AllocateZeroed(l Layout) ([]byte, error) {
	return a.Allocate(l)
}

// Deallocate destroys the locked buffer holding b. It panics when b was not
// returned by this allocator.
func (a *GuardedAllocator) Deallocate(b []byte, l Layout) {
	if l.Size == 0 {
		return
	}
	p := unsafe.SliceData(b)

	a.mu.Lock()
	buf, ok := a.buffers[p]
	delete(a.buffers, p)
	a.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("memory: deallocate of unknown guarded block %p", p))
	}
	buf.Destroy()
}

// Live returns the number of blocks not yet deallocated.
func (a *GuardedAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

var _ Allocator = (*GuardedAllocator)(nil)
