package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/allisson/zeroalloc/internal/memory"
)

// Operation names used as the "operation" label.
const (
	OpAllocate       = "allocate"
	OpAllocateZeroed = "allocate_zeroed"
	OpDeallocate     = "deallocate"
	OpStressRound    = "stress_round"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AllocatorMetrics records allocator activity.
type AllocatorMetrics interface {
	// RecordOperation counts one operation of the given kind on the named backend.
	RecordOperation(ctx context.Context, backend, operation, status string)

	// RecordBytes adds the size of the block an operation handled.
	RecordBytes(ctx context.Context, backend, operation string, n int)

	// RecordDuration records how long a multi-operation unit of work took.
	RecordDuration(ctx context.Context, backend, operation string, duration time.Duration, status string)
}

type allocatorMetrics struct {
	operationCounter metric.Int64Counter
	bytesCounter     metric.Int64Counter
	durationHisto    metric.Float64Histogram
}

// NewAllocatorMetrics creates the allocator instruments, prefixing their names
// with namespace.
func NewAllocatorMetrics(meterProvider metric.MeterProvider, namespace string) (AllocatorMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of allocator operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	bytesCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_block_bytes_total", namespace),
		metric.WithDescription("Total size of blocks handled by allocator operations"),
		metric.WithUnit("{byte}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bytes counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of allocator workloads in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &allocatorMetrics{
		operationCounter: operationCounter,
		bytesCounter:     bytesCounter,
		durationHisto:    durationHisto,
	}, nil
}

func (m *allocatorMetrics) RecordOperation(ctx context.Context, backend, operation, status string) {
	m.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (m *allocatorMetrics) RecordBytes(ctx context.Context, backend, operation string, n int) {
	m.bytesCounter.Add(ctx, int64(n),
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("operation", operation),
		),
	)
}

func (m *allocatorMetrics) RecordDuration(
	ctx context.Context,
	backend, operation string,
	duration time.Duration,
	status string,
) {
	m.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// NoOpAllocatorMetrics discards everything; used when metrics are disabled.
type NoOpAllocatorMetrics struct{}

// NewNoOpAllocatorMetrics creates a no-op AllocatorMetrics implementation.
func NewNoOpAllocatorMetrics() AllocatorMetrics {
	return &NoOpAllocatorMetrics{}
}

// RecordOperation does nothing.
func (n *NoOpAllocatorMetrics) RecordOperation(ctx context.Context, backend, operation, status string) {}

// RecordBytes does nothing.
func (n *NoOpAllocatorMetrics) RecordBytes(ctx context.Context, backend, operation string, size int) {}

// RecordDuration does nothing.
func (n *NoOpAllocatorMetrics) RecordDuration(
	ctx context.Context,
	backend, operation string,
	duration time.Duration,
	status string,
) {
}

// InstrumentedAllocator reports every call on the wrapped allocator to an
// AllocatorMetrics. Allocator calls carry no context, so metrics are recorded
// against context.Background.
type InstrumentedAllocator struct {
	inner   memory.Allocator
	metrics AllocatorMetrics
	backend string
}

// InstrumentAllocator wraps inner, labelling its metrics with backend.
func InstrumentAllocator(inner memory.Allocator, m AllocatorMetrics, backend string) *InstrumentedAllocator {
	return &InstrumentedAllocator{inner: inner, metrics: m, backend: backend}
}

// Allocate delegates and records the outcome.
func (a *InstrumentedAllocator) Allocate(l memory.Layout) ([]byte, error) {
	b, err := a.inner.Allocate(l)
	a.observe(OpAllocate, l.Size, err)
	return b, err
}

// AllocateZeroed delegates and records the outcome.
func (a *InstrumentedAllocator) AllocateZeroed(l memory.Layout) ([]byte, error) {
	b, err := a.inner.AllocateZeroed(l)
	a.observe(OpAllocateZeroed, l.Size, err)
	return b, err
}

// Deallocate delegates and records the release.
func (a *InstrumentedAllocator) Deallocate(b []byte, l memory.Layout) {
	a.inner.Deallocate(b, l)
	a.observe(OpDeallocate, l.Size, nil)
}

func (a *InstrumentedAllocator) observe(operation string, size int, err error) {
	ctx := context.Background()
	if err != nil {
		a.metrics.RecordOperation(ctx, a.backend, operation, StatusError)
		return
	}
	a.metrics.RecordOperation(ctx, a.backend, operation, StatusSuccess)
	a.metrics.RecordBytes(ctx, a.backend, operation, size)
}

var _ memory.Allocator = (*InstrumentedAllocator)(nil)
