// Package stress drives an allocator with a concurrent randomized workload of
// allocate, write, resize and free cycles. It is the workload behind the CLI
// self-audit and the end-to-end zeroing tests.
package stress

import (
	"context"
	"fmt"
	"math/bits"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
	"github.com/allisson/zeroalloc/internal/memory"
)

// DefaultMaxAlign is the largest alignment a Runner requests unless told otherwise.
const DefaultMaxAlign = 64

// Runner configures a stress run.
type Runner struct {
	// Workers is the number of concurrent goroutines.
	Workers int
	// Iterations is the number of cycles each worker performs.
	Iterations int
	// MaxSize is the largest block requested, in bytes.
	MaxSize int
	// MaxAlign is the largest alignment requested; a power of two.
	MaxAlign int
	// RateLimit caps cycles per second across all workers; 0 means unlimited.
	RateLimit float64
}

// Report summarizes a completed run.
type Report struct {
	RunID      string
	Workers    int
	Operations int64
	Bytes      int64
	Duration   time.Duration
}

// NewRunner returns a Runner with the given limits.
func NewRunner(workers, iterations, maxSize int, rateLimit float64) *Runner {
	return &Runner{
		Workers:    workers,
		Iterations: iterations,
		MaxSize:    maxSize,
		MaxAlign:   DefaultMaxAlign,
		RateLimit:  rateLimit,
	}
}

func (r *Runner) validate() error {
	if r.Workers < 1 || r.Iterations < 1 || r.MaxSize < 1 || r.RateLimit < 0 ||
		r.MaxAlign < 1 || r.MaxAlign&(r.MaxAlign-1) != 0 {
		return fmt.Errorf(
			"%w: workers=%d iterations=%d max_size=%d max_align=%d rate_limit=%g",
			apperrors.ErrInvalidInput, r.Workers, r.Iterations, r.MaxSize, r.MaxAlign, r.RateLimit,
		)
	}
	return nil
}

// Run executes the workload against a. Every cycle allocates a block of random
// size and alignment (every fourth through AllocateZeroed), fills it with random
// non-zero content, resizes it every fifth cycle, and frees it. Run stops at the
// first allocator error or when ctx is done; cancellation is only checked
// between cycles.
func (r *Runner) Run(ctx context.Context, a memory.Allocator) (*Report, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.Workers)
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	seed := rand.Uint64()

	var operations, total atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := range r.Workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, uint64(w)))
			for i := range r.Iterations {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				} else if err := gctx.Err(); err != nil {
					return err
				}

				n, err := r.cycle(a, rng, i)
				if err != nil {
					return fmt.Errorf("worker %d cycle %d: %w", w, i, err)
				}
				operations.Add(1)
				total.Add(int64(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{
		RunID:      runID.String(),
		Workers:    r.Workers,
		Operations: operations.Load(),
		Bytes:      total.Load(),
		Duration:   time.Since(start),
	}, nil
}

// cycle performs one allocate/write/free round and returns the number of bytes
// it wrote.
func (r *Runner) cycle(a memory.Allocator, rng *rand.Rand, i int) (int, error) {
	l := memory.Layout{Size: 1 + rng.IntN(r.MaxSize), Align: 1 << rng.IntN(bits.Len(uint(r.MaxAlign)))}

	var (
		b   []byte
		err error
	)
	if i%4 == 3 {
		b, err = a.AllocateZeroed(l)
	} else {
		b, err = a.Allocate(l)
	}
	if err != nil {
		return 0, err
	}
	written := fill(rng, b)

	if i%5 == 4 {
		newSize := 1 + rng.IntN(r.MaxSize)
		nb, err := memory.Reallocate(a, b, l, newSize)
		if err != nil {
			a.Deallocate(b, l)
			return 0, err
		}
		b, l = nb, l.WithSize(newSize)
		written += fill(rng, b)
	}

	a.Deallocate(b, l)
	return written, nil
}

// fill writes random bytes into b with a non-zero first byte, so a missing wipe
// is always observable.
func fill(rng *rand.Rand, b []byte) int {
	if len(b) == 0 {
		return 0
	}
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	b[0] = byte(1 + rng.IntN(255))
	return len(b)
}
