package frame

import (
	"fmt"
	"sort"

	"gokernel/kernelerr"
)

// fixedCapacity bounds the free list before the heap is available,
// matching Theseus's StaticArrayRBTree, which starts as a 32-element
// array usable in a const context and is promoted to a heap-backed
// balanced tree once allocation is available.
const fixedCapacity = 32

// sortedList holds non-overlapping chunks ordered by start frame. Before
// heapReady is signalled it refuses to grow past fixedCapacity (returning
// ErrOutOfSpace); afterwards it behaves as an ordinary growable slice,
// standing in for the promotion to a heap-backed tree.
type sortedList struct {
	chunks    []Chunk
	heapReady bool
}

func newSortedList() *sortedList {
	return &sortedList{chunks: make([]Chunk, 0, fixedCapacity)}
}

// promote signals that the heap is now available, lifting the
// fixed-capacity restriction.
func (l *sortedList) promote() { l.heapReady = true }

func (l *sortedList) len() int { return len(l.chunks) }

// insert adds c to the list in sorted position. It does not attempt to
// merge c with neighbors; merging is explicit (see coalesce).
func (l *sortedList) insert(c Chunk) error {
	if c.Empty() {
		return nil
	}
	if !l.heapReady && len(l.chunks) >= fixedCapacity {
		return fmt.Errorf("inserting %s: %w", c.frames, kernelerr.ErrOutOfSpace)
	}
	idx := sort.Search(len(l.chunks), func(i int) bool {
		return l.chunks[i].frames.Start > c.frames.Start
	})
	l.chunks = append(l.chunks, Chunk{})
	copy(l.chunks[idx+1:], l.chunks[idx:])
	l.chunks[idx] = c
	return nil
}

func (l *sortedList) removeAt(idx int) Chunk {
	c := l.chunks[idx]
	l.chunks = append(l.chunks[:idx], l.chunks[idx+1:]...)
	return c
}

// findContaining returns the index of the chunk that fully contains r, or
// -1 if none does.
func (l *sortedList) findContaining(r Range) int {
	for i, c := range l.chunks {
		if c.frames.Contains(r) {
			return i
		}
	}
	return -1
}

// findFirstFit returns the index of the first chunk whose length is at
// least n frames.
func (l *sortedList) findFirstFit(n uint64) int {
	for i, c := range l.chunks {
		if c.frames.Len() >= n {
			return i
		}
	}
	return -1
}

// anyOverlap reports whether r overlaps any chunk in the list.
func (l *sortedList) anyOverlap(r Range) bool {
	for _, c := range l.chunks {
		if c.frames.Overlaps(r) {
			return true
		}
	}
	return false
}

// coalesce merges every pair of adjacent same-type chunks in the list.
// Deferred until explicitly requested, per the "merging is not automatic"
// invariant.
func (l *sortedList) coalesce() {
	i := 0
	for i+1 < len(l.chunks) {
		merged, ok := l.chunks[i].Merge(l.chunks[i+1])
		if ok {
			l.chunks[i] = merged
			l.chunks = append(l.chunks[:i+1], l.chunks[i+2:]...)
			continue
		}
		i++
	}
}

func (l *sortedList) snapshot() []Range {
	out := make([]Range, len(l.chunks))
	for i, c := range l.chunks {
		out[i] = c.frames
	}
	return out
}
