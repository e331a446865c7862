package memory

import (
	"unsafe"

	"github.com/awnumar/memguard"
)

// Wipe writes n zero bytes starting at p in a single pass.
// p must be valid for writes of n bytes. Wipe touches nothing when n is zero.
func Wipe(p *byte, n int) {
	if n == 0 {
		return
	}
	memguard.WipeBytes(unsafe.Slice(p, n))
}

// IsZero reports whether the n bytes starting at p are all zero.
// p must be valid for reads of n bytes. IsZero reads nothing when n is zero.
func IsZero(p *byte, n int) bool {
	if n == 0 {
		return true
	}
	for _, b := range unsafe.Slice(p, n) {
		if b != 0 {
			return false
		}
	}
	return true
}
