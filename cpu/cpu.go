// Package cpu exposes the architecture-specific primitives that the rest
// of the kernel needs but cannot express in portable Go: enabling and
// disabling local interrupts, halting, and TLB control. Declarations
// follow the teacher's gopher-os/kernel/cpu convention of bodyless
// functions backed by per-architecture assembly.
//
// This file is built only under the gokernel_freestanding tag, i.e.
//
//	go build -tags gokernel_freestanding ./...
//
// and requires linking the matching architecture's .s file (not included
// here; out of scope per spec.md's "architecture trampolines" non-goal).
// The default, untagged build instead compiles cpu_hosted.go's
// process-wide simulation, so plain `go build ./...` / `go vet ./...`
// / `go test ./...` work out of the box and the rest of the module's
// logic can be exercised under a hosted Go toolchain — see
// SPEC_FULL.md's Open Questions §4.
//go:build gokernel_freestanding

package cpu

// EnableInterrupts unmasks local interrupts on the current CPU.
func EnableInterrupts()

// DisableInterrupts masks local interrupts on the current CPU and
// returns an opaque token recording whether they were previously enabled,
// so a matching RestoreInterrupts can nest correctly.
func DisableInterrupts() uintptr

// RestoreInterrupts restores the interrupt-enable state captured by a
// prior DisableInterrupts call.
func RestoreInterrupts(token uintptr)

// Halt stops instruction execution until the next interrupt.
func Halt()

// FlushTLBEntry invalidates a single virtual address's TLB entry on the
// current CPU.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPageTable installs physAddr as the root page table and flushes
// the TLB.
func SwitchPageTable(physAddr uintptr)

// ActivePageTable returns the physical address of the currently active
// root page table.
func ActivePageTable() uintptr
