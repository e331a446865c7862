// Package audit provides an allocator wrapper that observes every free and records
// whether the released bytes were all zero. It is the harness used to prove the
// zero-on-free guarantee: interpose an Auditor between memory.ZeroOnFree and a
// real backend, run a workload, then call VerifyAllZeroed.
package audit

import (
	"fmt"
	"sync"
	"unsafe"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
	"github.com/allisson/zeroalloc/internal/memory"
)

// DefaultCapacity is the number of most recent frees the log remembers.
const DefaultCapacity = 2048

// AllocInfo is a copy of the audit log.
type AllocInfo struct {
	// FreeCount is the number of frees observed since the last Clear.
	FreeCount uint64
	// Zeroed holds one entry per slot of the circular log, indexed by free count
	// modulo capacity. Only the first min(capacity, FreeCount) entries are meaningful.
	Zeroed []bool
}

// Auditor wraps an allocator and logs, for each Deallocate, whether the block was
// all zero at the moment it was released. Allocations pass straight through.
type Auditor struct {
	inner memory.Allocator

	mu        sync.Mutex
	freeCount uint64
	zeroed    []bool
}

// New returns an Auditor over inner remembering the last capacity frees.
func New(inner memory.Allocator, capacity int) (*Auditor, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: audit capacity must be positive, got %d", apperrors.ErrInvalidInput, capacity)
	}
	return &Auditor{
		inner:  inner,
		zeroed: make([]bool, capacity),
	}, nil
}

// Allocate delegates to the inner allocator.
func (a *Auditor) Allocate(l memory.Layout) ([]byte, error) {
	return a.inner.Allocate(l)
}

// AllocateZeroed delegates to the inner allocator.
func (a *Auditor) AllocateZeroed(l memory.Layout) ([]byte, error) {
	return a.inner.AllocateZeroed(l)
}

// Deallocate records whether l.Size bytes of b are zero and then forwards the
// block to the inner allocator.
func (a *Auditor) Deallocate(b []byte, l memory.Layout) {
	a.record(unsafe.SliceData(b), l.Size)
	a.inner.Deallocate(b, l)
}

// record must not allocate: the log is pre-sized and the lock covers only the
// inspect, record and increment steps.
func (a *Auditor) record(p *byte, n int) {
	a.mu.Lock()
	a.zeroed[a.freeCount%uint64(len(a.zeroed))] = memory.IsZero(p, n)
	a.freeCount++
	a.mu.Unlock()
}

// VerifyAllZeroed reports whether every logged free since the last Clear was all
// zero. Once more than Capacity frees happened only the most recent Capacity are
// considered. With no frees it is vacuously true.
func (a *Auditor) VerifyAllZeroed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := min(uint64(len(a.zeroed)), a.freeCount)
	for _, ok := range a.zeroed[:n] {
		if !ok {
			return false
		}
	}
	return true
}

// Clear resets the counter and the log.
func (a *Auditor) Clear() {
	a.mu.Lock()
	a.freeCount = 0
	clear(a.zeroed)
	a.mu.Unlock()
}

// Session clears the log and returns a function that clears it again, for use
// with t.Cleanup or defer.
func (a *Auditor) Session() func() {
	a.Clear()
	return a.Clear
}

// FreeCount returns the number of frees observed since the last Clear.
func (a *Auditor) FreeCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeCount
}

// Capacity returns the size of the circular log.
func (a *Auditor) Capacity() int {
	return len(a.zeroed)
}

// Snapshot returns a copy of the log.
func (a *Auditor) Snapshot() AllocInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	zeroed := make([]bool, len(a.zeroed))
	copy(zeroed, a.zeroed)
	return AllocInfo{FreeCount: a.freeCount, Zeroed: zeroed}
}

var _ memory.Allocator = (*Auditor)(nil)

var (
	global     *Auditor
	globalOnce sync.Once
)

// Global returns the process-wide Auditor over the Go heap with DefaultCapacity.
// Tests sharing it should take a Session to isolate their frees.
func Global() *Auditor {
	globalOnce.Do(func() {
		global = &Auditor{
			inner:  memory.NewGoAllocator(),
			zeroed: make([]bool, DefaultCapacity),
		}
	})
	return global
}
