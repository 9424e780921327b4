// Package handle tracks the input files a backend has claimed and brokers
// re-acquisition of their descriptors.
//
// # Handles
//
// A Handle packs a slot index and a generation counter:
//
//	 63            32 31             0
//	+----------------+----------------+
//	|   generation   |   index + 1    |
//	+----------------+----------------+
//
// Handle 0 is reserved and always invalid. Dropping a handle bumps the
// generation of its slot, so a stale or double-dropped handle is rejected with
// BadHandle even after the slot has been reused.
//
// # Descriptors
//
// The registry never owns the original descriptor handed to a claim handler;
// that one stays under host control and may be closed as soon as the claim
// returns. A backend that needs to read the file later calls Acquire, owns the
// returned descriptor, and must call ReleaseDescriptor on every path.
package handle

import "fmt"

// Handle identifies one claimed input file for the duration of a session.
type Handle uint64

// Invalid is the zero handle.
const Invalid Handle = 0

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

// Index returns the slot index encoded in h.
func (h Handle) Index() uint32 {
	return uint32(h) - 1
}

// Generation returns the generation encoded in h.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}

// String formats h as index.generation.
func (h Handle) String() string {
	if h == Invalid {
		return "invalid"
	}
	return fmt.Sprintf("%d.%d", h.Index(), h.Generation())
}
