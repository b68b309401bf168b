package page

// RegionType tags a chunk of pages with its provenance, mirroring
// frame.RegionType.
type RegionType int

const (
	Free RegionType = iota
	Reserved
)

func (t RegionType) String() string {
	if t == Reserved {
		return "Reserved"
	}
	return "Free"
}

// Chunk is a contiguous, typed range of pages.
type Chunk struct {
	typ   RegionType
	pages Range
}

func EmptyChunk() Chunk {
	return Chunk{typ: Free, pages: Range{Start: 1, End: 0}}
}

func newChunk(typ RegionType, r Range) Chunk { return Chunk{typ: typ, pages: r} }

func (c Chunk) Type() RegionType { return c.typ }
func (c Chunk) Range() Range     { return c.pages }
func (c Chunk) Empty() bool      { return c.pages.Empty() }

func (c Chunk) Split(at Number) (before, after Chunk, ok bool) {
	if c.pages.Empty() || at < c.pages.Start || at > c.pages.End+1 {
		return Chunk{}, Chunk{}, false
	}
	before = newChunk(c.typ, Range{Start: c.pages.Start, End: at - 1})
	after = newChunk(c.typ, Range{Start: at, End: c.pages.End})
	return before, after, true
}

func (c Chunk) Merge(other Chunk) (Chunk, bool) {
	if other.Empty() {
		return c, true
	}
	if c.Empty() {
		return other, true
	}
	if c.typ != other.typ || !c.pages.Adjacent(other.pages) {
		return Chunk{}, false
	}
	start, end := c.pages.Start, c.pages.End
	if other.pages.Start < start {
		start = other.pages.Start
	}
	if other.pages.End > end {
		end = other.pages.End
	}
	return newChunk(c.typ, Range{Start: start, End: end}), true
}
