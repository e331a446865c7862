// Package errors provides the sentinel errors shared by the allocator packages.
// Callers should match them with Is rather than comparing messages.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors that can be used across all packages.
var (
	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidLayout indicates a negative size or an alignment that is not a power of two.
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrOutOfMemory indicates the underlying allocator could not satisfy a request.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrNotZeroed indicates an audit observed a freed block that was not all zero.
	ErrNotZeroed = errors.New("freed memory was not zeroed")
)

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
