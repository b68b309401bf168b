package paging

import (
	"fmt"
	"unsafe"

	"gokernel/kernelerr"
)

// POD marks a type as plain-old-data: every bit pattern of the type is a
// valid value, so reinterpreting raw mapped bytes as T cannot construct
// an invalid instance. This is the compile-time capability bound
// spec.md §4.D and §9 call for (Rust expresses it as an unsafe trait
// bound); Go lacks a language-level equivalent, so it is reified as an
// interface that candidate types must implement with a no-op marker
// method. AsType/AsSlice are generic over POD, so a type that forgets to
// implement it simply cannot be named at the call site.
type POD interface {
	PlainOldData()
}

// Byte-width marker types for the common cases; anything else the kernel
// needs to view this way defines its own no-op PlainOldData method.
type (
	U8  uint8
	U16 uint16
	U32 uint32
	U64 uint64
	I8  int8
	I16 int16
	I32 int32
	I64 int64
)

func (U8) PlainOldData()  {}
func (U16) PlainOldData() {}
func (U32) PlainOldData() {}
func (U64) PlainOldData() {}
func (I8) PlainOldData()  {}
func (I16) PlainOldData() {}
func (I32) PlainOldData() {}
func (I64) PlainOldData() {}

func boundsCheck[T POD](mp *MappedPages, offset uintptr, count uintptr) error {
	if mp.unmapped {
		return fmt.Errorf("view: %w", kernelerr.ErrInvalidMapping)
	}
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)
	if offset%align != 0 {
		return fmt.Errorf("view at offset %#x: %w", offset, kernelerr.ErrMisaligned)
	}
	need := size * count
	if offset > mp.SizeInBytes() || need > mp.SizeInBytes()-offset {
		return fmt.Errorf("view at offset %#x, len %#x: %w", offset, need, kernelerr.ErrOutOfBounds)
	}
	return nil
}

// AsType reinterprets the mapped region at offset as *T.
func AsType[T POD](mp *MappedPages, offset uintptr) (*T, error) {
	if err := boundsCheck[T](mp, offset, 1); err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&mp.backing[offset])), nil
}

// AsTypeMut is AsType additionally requiring the mapping be writable.
func AsTypeMut[T POD](mp *MappedPages, offset uintptr) (*T, error) {
	if !mp.flags.Writable() {
		return nil, fmt.Errorf("view at offset %#x: %w", offset, kernelerr.ErrNotMutable)
	}
	return AsType[T](mp, offset)
}

// AsSlice reinterprets n elements of T at offset as a read-only slice.
func AsSlice[T POD](mp *MappedPages, offset uintptr, n int) ([]T, error) {
	if err := boundsCheck[T](mp, offset, uintptr(n)); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	ptr := (*T)(unsafe.Pointer(&mp.backing[offset]))
	return unsafe.Slice(ptr, n), nil
}

// AsSliceMut is AsSlice additionally requiring the mapping be writable.
func AsSliceMut[T POD](mp *MappedPages, offset uintptr, n int) ([]T, error) {
	if !mp.flags.Writable() {
		return nil, fmt.Errorf("view at offset %#x: %w", offset, kernelerr.ErrNotMutable)
	}
	return AsSlice[T](mp, offset, n)
}
