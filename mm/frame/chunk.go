package frame

// Chunk is a contiguous, typed range of frames. Chunks in the global free
// list never overlap; two chunks of the same type that are contiguous may
// be merged, but merging only happens on deallocation coalescing or on
// explicit request — never automatically on insert.
type Chunk struct {
	typ    RegionType
	frames Range
}

// EmptyChunk is the canonical empty sentinel: a chunk whose range holds no
// frames. It may be merged with (and is absorbed by) anything.
func EmptyChunk() Chunk {
	return Chunk{typ: Free, frames: Range{Start: 1, End: 0}}
}

func newChunk(typ RegionType, r Range) Chunk {
	return Chunk{typ: typ, frames: r}
}

// Type reports the chunk's region type.
func (c Chunk) Type() RegionType { return c.typ }

// Range reports the chunk's frame range.
func (c Chunk) Range() Range { return c.frames }

// Empty reports whether the chunk holds zero frames.
func (c Chunk) Empty() bool { return c.frames.Empty() }

// Split divides c at frame `at` into two chunks: [start, at-1] and
// [at, end]. Either half may be empty if `at` sits at a boundary. Returns
// false if `at` is not within (or one-past) the chunk's range.
func (c Chunk) Split(at Number) (before, after Chunk, ok bool) {
	if c.frames.Empty() {
		return Chunk{}, Chunk{}, false
	}
	if at < c.frames.Start || at > c.frames.End+1 {
		return Chunk{}, Chunk{}, false
	}
	before = newChunk(c.typ, Range{Start: c.frames.Start, End: at - 1})
	after = newChunk(c.typ, Range{Start: at, End: c.frames.End})
	return before, after, true
}

// Merge combines c with other into a single chunk, provided they are the
// same type and either adjacent or one is empty. Returns false if they
// cannot be merged, in which case neither input is modified.
func (c Chunk) Merge(other Chunk) (Chunk, bool) {
	if other.Empty() {
		return c, true
	}
	if c.Empty() {
		return other, true
	}
	if c.typ != other.typ {
		return Chunk{}, false
	}
	if !c.frames.Adjacent(other.frames) {
		return Chunk{}, false
	}
	start := c.frames.Start
	if other.frames.Start < start {
		start = other.frames.Start
	}
	end := c.frames.End
	if other.frames.End > end {
		end = other.frames.End
	}
	return newChunk(c.typ, Range{Start: start, End: end}), true
}
