package frame

import (
	"errors"
	"fmt"
	"runtime"
)

// AllocatedFrames is the owned, non-cloneable right to use a range of
// physical frames. There is intentionally no Clone method and no way to
// obtain a second AllocatedFrames over the same range: allocate removes
// the range from the free list before constructing one, and the only way
// a range re-enters a free list is through Free/Release of an
// AllocatedFrames that held it. This is the no-double-allocation
// invariant from spec.md §4.A, carried over from Theseus's AllocatedFrames
// (original_source/kernel/frame_allocator/src/allocated_frames.rs).
//
// Call Release when done; a finalizer backstops leaks (it returns the
// frames to the allocator, without logging and without panicking, since
// a panic in a finalizer would be worse than a leak) but must not be
// relied upon for timely reclamation.
type AllocatedFrames struct {
	owner   *Allocator
	chunk   Chunk
	released bool
}

// Empty returns a placeholder AllocatedFrames that owns nothing and can be
// released safely any number of times.
func Empty() *AllocatedFrames {
	return &AllocatedFrames{chunk: EmptyChunk(), released: true}
}

// Range reports the underlying frame range.
func (a *AllocatedFrames) Range() Range { return a.chunk.frames }

// Type reports the underlying chunk's region type.
func (a *AllocatedFrames) Type() RegionType { return a.chunk.typ }

// Len reports the number of frames owned.
func (a *AllocatedFrames) Len() uint64 { return a.chunk.frames.Len() }

func newAllocated(owner *Allocator, c Chunk) *AllocatedFrames {
	af := &AllocatedFrames{owner: owner, chunk: c}
	runtime.SetFinalizer(af, func(a *AllocatedFrames) {
		if !a.released && !a.chunk.Empty() {
			// This indicates a bug: the owner forgot to call Release.
			// We still return the frames so the allocator doesn't leak
			// them permanently, but a real kernel build would rather
			// catch this in testing than rely on GC timing.
			a.owner.reclaim(a.chunk)
		}
	})
	return af
}

// Release returns the frames to the allocator's free list. It is
// idempotent; releasing an already-released (or Empty) AllocatedFrames is
// a no-op. After Release, a and its Range must not be used.
func (a *AllocatedFrames) Release() {
	if a.released || a.chunk.Empty() {
		a.released = true
		return
	}
	a.owner.reclaim(a.chunk)
	a.released = true
	runtime.SetFinalizer(a, nil)
}

// Split divides a into two AllocatedFrames at frame `at`, consuming a.
// Either half may be Empty if `at` is at a boundary.
func Split(a *AllocatedFrames, at Number) (before, after *AllocatedFrames, err error) {
	b, c, ok := a.chunk.Split(at)
	if !ok {
		return nil, nil, fmt.Errorf("split at %#x: %w", at.Addr(), errInvalidSplit)
	}
	a.released = true
	runtime.SetFinalizer(a, nil)
	return newAllocated(a.owner, b), newAllocated(a.owner, c), nil
}

// Merge combines two adjacent AllocatedFrames into one, consuming both.
// On failure (not adjacent, or mismatched type) neither input is
// consumed and ok is false.
func Merge(a, b *AllocatedFrames) (merged *AllocatedFrames, ok bool) {
	m, can := a.chunk.Merge(b.chunk)
	if !can {
		return nil, false
	}
	a.released = true
	b.released = true
	runtime.SetFinalizer(a, nil)
	runtime.SetFinalizer(b, nil)
	return newAllocated(a.owner, m), true
}

func (a *AllocatedFrames) String() string {
	return fmt.Sprintf("AllocatedFrames(%s, %s)", a.chunk.typ, a.chunk.frames)
}

var errInvalidSplit = errors.New("split point not within chunk")
