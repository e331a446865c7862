// Package mocks provides mock implementations of the metrics interfaces for testing.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/zeroalloc/internal/metrics"
)

// MockAllocatorMetrics is a mock implementation of metrics.AllocatorMetrics.
type MockAllocatorMetrics struct {
	mock.Mock
}

// RecordOperation mocks the RecordOperation method.
func (m *MockAllocatorMetrics) RecordOperation(ctx context.Context, backend, operation, status string) {
	m.Called(ctx, backend, operation, status)
}

// RecordBytes mocks the RecordBytes method.
func (m *MockAllocatorMetrics) RecordBytes(ctx context.Context, backend, operation string, n int) {
	m.Called(ctx, backend, operation, n)
}

// RecordDuration mocks the RecordDuration method.
func (m *MockAllocatorMetrics) RecordDuration(
	ctx context.Context,
	backend, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, backend, operation, duration, status)
}

var _ metrics.AllocatorMetrics = (*MockAllocatorMetrics)(nil)
