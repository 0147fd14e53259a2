package device

import "unsafe"

// SharedArena is a fixed-capacity bump allocator backing one block's
// shared-memory scratch region for the duration of a launch. Unlike a growable
// arena, exhausting it is a launch failure: on real hardware the launch would
// have been rejected up front for requesting more shared memory than the
// device provides.
type SharedArena struct {
	buf    []byte
	offset int
	failed bool
}

// allocAlign keeps every returned region 8-byte aligned so typed views over
// the raw bytes are legal.
const allocAlign = 8

func newSharedArena(capacity int) *SharedArena {
	return &SharedArena{buf: make([]byte, capacity)}
}

// Alloc returns a size-byte region, or nil when the arena is exhausted.
// Exhaustion is sticky: the launch reports it as a device error afterwards.
func (a *SharedArena) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	off := (a.offset + allocAlign - 1) &^ (allocAlign - 1)
	if off+size > len(a.buf) {
		a.failed = true
		return nil
	}
	a.offset = off + size
	return a.buf[off : off+size]
}

// AllocInt32 returns an n-element int32 scratch view, or nil on exhaustion.
func (a *SharedArena) AllocInt32(n int) []int32 {
	b := a.Alloc(n * 4)
	if b == nil {
		return nil
	}
	s := unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), n)
	for i := range s {
		s[i] = 0
	}
	return s
}

// Mark returns the current allocation position for a later Truncate.
func (a *SharedArena) Mark() int { return a.offset }

// Truncate releases everything allocated after the given mark. The fused
// interpreter uses this to reuse the same scratch region for each instruction,
// which is what makes the per-instruction sizing contract exact.
func (a *SharedArena) Truncate(mark int) {
	if mark >= 0 && mark <= a.offset {
		a.offset = mark
	}
}

// Used returns the number of bytes currently allocated.
func (a *SharedArena) Used() int { return a.offset }

// Capacity returns the total size of the region.
func (a *SharedArena) Capacity() int { return len(a.buf) }

// Failed reports whether any allocation has ever been refused.
func (a *SharedArena) Failed() bool { return a.failed }
