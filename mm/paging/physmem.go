package paging

import (
	"sync"

	"gokernel/mm/frame"
)

// On real hardware a MappedPages lets a task touch physical memory
// directly through the MMU. A hosted Go process has no such access, so
// this package keeps a small simulated backing store: each contiguous
// span of frames that is ever mapped gets one []byte allocation, indexed
// by its starting frame number, so that two different MappedPages values
// sharing the same frames (see Map frames_to_non_exclusive) observe the
// same bytes. This is purely a test/dev-mode stand-in; it has no spec.md
// counterpart because spec.md describes memory a real MMU would provide.
var physMem struct {
	mu    sync.Mutex
	spans map[frame.Number][]byte
}

func init() {
	physMem.spans = make(map[frame.Number][]byte)
}

func registerBacking(start frame.Number, data []byte) {
	physMem.mu.Lock()
	physMem.spans[start] = data
	physMem.mu.Unlock()
}

func lookupBacking(start frame.Number, length int) ([]byte, bool) {
	physMem.mu.Lock()
	defer physMem.mu.Unlock()
	b, ok := physMem.spans[start]
	if !ok || len(b) != length {
		return nil, false
	}
	return b, true
}

func releaseBacking(start frame.Number) {
	physMem.mu.Lock()
	delete(physMem.spans, start)
	physMem.mu.Unlock()
}
