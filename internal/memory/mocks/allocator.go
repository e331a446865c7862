// Package mocks provides mock implementations of the allocator contract for testing.
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/allisson/zeroalloc/internal/memory"
)

// MockAllocator is a mock implementation of memory.Allocator.
type MockAllocator struct {
	mock.Mock
}

// Allocate mocks the Allocate method of memory.Allocator.
func (m *MockAllocator) Allocate(l memory.Layout) ([]byte, error) {
	args := m.Called(l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// AllocateZeroed mocks the AllocateZeroed method of memory.Allocator.
func (m *MockAllocator) AllocateZeroed(l memory.Layout) ([]byte, error) {
	args := m.Called(l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Deallocate mocks the Deallocate method of memory.Allocator.
func (m *MockAllocator) Deallocate(b []byte, l memory.Layout) {
	m.Called(b, l)
}

var _ memory.Allocator = (*MockAllocator)(nil)
