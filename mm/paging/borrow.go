package paging

import "fmt"

// Mutability tags whether a BorrowedMappedPages grants read-only or
// read-write access.
type Mutability int

const (
	Immutable Mutability = iota
	Mutable
)

// BorrowedMappedPages lends out typed access to a MappedPages region. It
// does not pin the region: MappedPages.Unmap does not check for live
// borrows, and a Deref after the region is unmapped panics. Grounded on Theseus's BorrowedMappedPages
// (original_source/kernel/nano_core/src/memory/paging/mapper.rs,
// kernel/memory/src/paging/mapper_spillful.rs) — supplementing spec.md
// §4.D, which mentions this type only in passing.
type BorrowedMappedPages[T POD] struct {
	mp       *MappedPages
	offset   uintptr
	mut      Mutability
	released bool
}

// BorrowMapped checks that a *T at offset is in bounds, aligned and (for
// Mutable) writable, and returns a typed borrow of it. mp is not pinned:
// nothing stops mp from being unmapped while the borrow is live.
func BorrowMapped[T POD](mp *MappedPages, offset uintptr, mut Mutability) (*BorrowedMappedPages[T], error) {
	if mut == Mutable {
		if _, err := AsTypeMut[T](mp, offset); err != nil {
			return nil, err
		}
	} else {
		if _, err := AsType[T](mp, offset); err != nil {
			return nil, err
		}
	}
	return &BorrowedMappedPages[T]{mp: mp, offset: offset, mut: mut}, nil
}

// Deref returns the pointer to the borrowed value. Valid until Release.
func (b *BorrowedMappedPages[T]) Deref() *T {
	if b.released {
		panic("paging: use of released BorrowedMappedPages")
	}
	v, err := AsType[T](b.mp, b.offset)
	if err != nil {
		panic(fmt.Sprintf("paging: borrowed region became invalid: %v", err))
	}
	return v
}

// Release marks the borrow released, so later Deref calls panic. It
// leaves the MappedPages itself untouched. Idempotent.
func (b *BorrowedMappedPages[T]) Release() { b.released = true }

// BorrowedMappedPagesSlice is the slice analogue of BorrowedMappedPages.
type BorrowedMappedPagesSlice[T POD] struct {
	mp       *MappedPages
	offset   uintptr
	len      int
	mut      Mutability
	released bool
}

// BorrowMappedSlice checks the range like BorrowMapped and returns a typed
// borrow of n contiguous Ts at offset. mp is not pinned.
func BorrowMappedSlice[T POD](mp *MappedPages, offset uintptr, n int, mut Mutability) (*BorrowedMappedPagesSlice[T], error) {
	if mut == Mutable {
		if _, err := AsSliceMut[T](mp, offset, n); err != nil {
			return nil, err
		}
	} else {
		if _, err := AsSlice[T](mp, offset, n); err != nil {
			return nil, err
		}
	}
	return &BorrowedMappedPagesSlice[T]{mp: mp, offset: offset, len: n, mut: mut}, nil
}

// Deref returns the borrowed slice. Valid until Release.
func (b *BorrowedMappedPagesSlice[T]) Deref() []T {
	if b.released {
		panic("paging: use of released BorrowedMappedPagesSlice")
	}
	s, err := AsSlice[T](b.mp, b.offset, b.len)
	if err != nil {
		panic(fmt.Sprintf("paging: borrowed region became invalid: %v", err))
	}
	return s
}

// Release marks the borrow released, so later Deref calls panic. It
// leaves the MappedPages itself untouched. Idempotent.
func (b *BorrowedMappedPagesSlice[T]) Release() { b.released = true }
