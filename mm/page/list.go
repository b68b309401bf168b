package page

import (
	"fmt"
	"sort"

	"gokernel/kernelerr"
)

const fixedCapacity = 32

type sortedList struct {
	chunks    []Chunk
	heapReady bool
}

func newSortedList() *sortedList { return &sortedList{chunks: make([]Chunk, 0, fixedCapacity)} }

func (l *sortedList) promote() { l.heapReady = true }

func (l *sortedList) insert(c Chunk) error {
	if c.Empty() {
		return nil
	}
	if !l.heapReady && len(l.chunks) >= fixedCapacity {
		return fmt.Errorf("inserting %s: %w", c.pages, kernelerr.ErrOutOfSpace)
	}
	idx := sort.Search(len(l.chunks), func(i int) bool {
		return l.chunks[i].pages.Start > c.pages.Start
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

func (l *sortedList) findContaining(r Range) int {
	for i, c := range l.chunks {
		if c.pages.Contains(r) {
			return i
		}
	}
	return -1
}

func (l *sortedList) findFirstFit(n uint64) int {
	for i, c := range l.chunks {
		if c.pages.Len() >= n {
			return i
		}
	}
	return -1
}

func (l *sortedList) anyOverlap(r Range) bool {
	for _, c := range l.chunks {
		if c.pages.Overlaps(r) {
			return true
		}
	}
	return false
}

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
		out[i] = c.pages
	}
	return out
}
