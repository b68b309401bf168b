package heap

import "gokernel/mm/paging"

// Block is an owned allocation handed out by a Heap or MultipleHeaps. It
// remembers enough about its provenance — the object page and slot it
// came from, or the passthrough mapping for a large allocation — to be
// freed without the caller needing to say which.
type Block struct {
	data []byte

	// Small-object provenance.
	page *objectPage
	slot int

	// Large-object passthrough provenance: the MappedPages that owns the
	// allocation's pages is held here, not inline in the allocation, and
	// Dealloc unmaps it.
	large   bool
	mapping *paging.MappedPages
}

// Bytes returns the allocation's backing storage. Its length is the
// rounded-up size class (or exact request size, for large allocations),
// not necessarily the caller's originally requested size.
func (b *Block) Bytes() []byte { return b.data }

// Large reports whether this allocation was served directly from
// mm/paging rather than a size-classed slab.
func (b *Block) Large() bool { return b.large }
