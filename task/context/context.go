// Package context implements the context-switch primitive of
// spec.md §4.F: a naked, architecture-specific routine that saves the
// outgoing task's callee-saved registers and restores the incoming
// task's. Real implementations live in per-architecture assembly, which
// is out of scope here (same posture as gokernel/cpu); this package's
// non-hosted build only declares the function signatures real code
// would link against.
//
// Grounded on Theseus's context_switch crate family
// (original_source has no assembly, but kernel/task's run-state machine
// documents the calling convention this mirrors) and on the teacher's
// own per-architecture trampoline in runtime (src/runtime/asm_*.s,
// referenced from biscuit/src/main.go's bootstrap path).
package context

// StackPointer is an opaque saved stack pointer value for one task.
type StackPointer uintptr

// Personality selects which register file a context switch saves and
// restores, per spec.md §4.F's "variants exist for non-SIMD, SSE, and
// AVX register files, with hybrid transition routines for tasks of
// differing register-file widths."
type Personality int

const (
	NoSIMD Personality = iota
	SSE
	AVX
)

func (p Personality) String() string {
	switch p {
	case NoSIMD:
		return "NoSIMD"
	case SSE:
		return "SSE"
	case AVX:
		return "AVX"
	default:
		return "Personality(?)"
	}
}
