package paging

import (
	"gokernel/kernelerr"
	"gokernel/mm/frame"
	"gokernel/mm/page"
)

// levels is the assumed page-table depth, matching amd64/arm64's 4-level
// radix tables (spec.md §4.C: "Architecture-appropriate multi-level radix
// table (4 levels assumed)").
const levels = 4

// entriesPerTable is 512 on every architecture this module targets (9
// bits of index per level, 12-bit page offset, 4 levels = 48-bit virtual
// address space).
const entriesPerTable = 512

// entry is one slot of a table: either empty, a leaf mapping a frame, or
// an intermediate pointing at the next-level table.
type entry struct {
	present bool
	huge    bool
	flags   Flags
	leaf    frame.Number
	child   *table
}

// table is one level of the radix tree. Intermediate table frames are
// tracked only by this Go-level structure. Intermediate tables are never
// freed: walkCreate adds them on demand and nothing reclaims one that has
// become empty.
type table struct {
	entries [entriesPerTable]entry
}

// indices splits a page number into its per-level index, most significant
// first (index 0 selects the top-level table).
func indices(pn page.Number) [levels]int {
	var idx [levels]int
	shift := uint(9 * (levels - 1))
	for i := 0; i < levels; i++ {
		idx[i] = int((uint64(pn) >> shift) & (entriesPerTable - 1))
		shift -= 9
	}
	return idx
}

// walk finds the leaf entry for pn without creating missing intermediate
// tables. ok is false if any intermediate level is absent.
func (t *table) walk(pn page.Number) (*entry, bool, error) {
	idx := indices(pn)
	cur := t
	for level := 0; level < levels-1; level++ {
		e := &cur.entries[idx[level]]
		if !e.present {
			return nil, false, nil
		}
		if e.huge {
			return nil, false, kernelerr.ErrInvalidMapping
		}
		cur = e.child
	}
	leaf := &cur.entries[idx[levels-1]]
	return leaf, leaf.present, nil
}

// walkCreate is walk, but allocates missing intermediate tables on
// demand. Their destruction is out of scope (spec.md §4.C).
func (t *table) walkCreate(pn page.Number) (*entry, error) {
	idx := indices(pn)
	cur := t
	for level := 0; level < levels-1; level++ {
		e := &cur.entries[idx[level]]
		if !e.present {
			e.present = true
			e.child = &table{}
		}
		if e.huge {
			return nil, kernelerr.ErrInvalidMapping
		}
		cur = e.child
	}
	return &cur.entries[idx[levels-1]], nil
}
