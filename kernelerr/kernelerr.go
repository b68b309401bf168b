// Package kernelerr collects the error taxonomy shared by every subsystem
// in this module: resource exhaustion, address/range validity, ownership
// and concurrency failures, and the I/O errors surfaced at the boundary.
//
// Every sentinel is a KernelError, a string-backed error comparable with
// errors.Is without allocating, the same trick the teacher's errors fork
// uses for errorString.
package kernelerr

// KernelError is a trivial error implementation that requires no
// allocation to construct or compare.
type KernelError string

// Error implements the error interface.
func (e KernelError) Error() string { return string(e) }

// Resource exhaustion.
const (
	ErrOutOfMemory KernelError = "out of memory"
	ErrOutOfSpace  KernelError = "fixed-capacity array full (heap not ready)"
)

// Address/range validity.
const (
	ErrInvalidAddress KernelError = "invalid address"
	ErrInvalidRange    KernelError = "invalid range"
	ErrMisaligned      KernelError = "misaligned access"
	ErrOutOfBounds     KernelError = "out of bounds"
	ErrOverlap         KernelError = "overlapping range"
	ErrInvalidMapping  KernelError = "invalid mapping (huge page or unsupported PTE)"
)

// Ownership/state.
const (
	ErrAlreadyAllocated KernelError = "already allocated"
	ErrNotMutable        KernelError = "mapping is not writable"
	ErrWrongRegionType   KernelError = "wrong region type"
	ErrInvalidLayout     KernelError = "invalid allocation layout"
)

// Concurrency.
const (
	ErrIrqInUse         KernelError = "interrupt vector already has a handler"
	ErrTaskAlreadyExists KernelError = "task already exists"
	ErrTaskNotFound      KernelError = "task not found"
)

// I/O (boundary only — surfaced by gokernel/task's standard streams).
const (
	ErrNotFound         KernelError = "not found"
	ErrPermissionDenied KernelError = "permission denied"
	ErrBrokenPipe       KernelError = "broken pipe"
	ErrWouldBlock       KernelError = "would block"
	ErrInterrupted      KernelError = "interrupted"
	ErrTimedOut         KernelError = "timed out"
	ErrUnexpectedEOF    KernelError = "unexpected EOF"
	ErrInvalidInput     KernelError = "invalid input"
	ErrInvalidData      KernelError = "invalid data"
)
