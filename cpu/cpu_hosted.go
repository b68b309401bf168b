//go:build !gokernel_freestanding

package cpu

import "sync/atomic"

// Hosted simulation backend, built by default (i.e. whenever
// gokernel_freestanding is not set — ordinary `go build`/`go vet`/
// `go test` all take this path). There is no real CPU to mask
// interrupts on when running under a host OS scheduler, so this tracks
// enable/disable state in one process-wide flag (shared by every
// goroutine; there is no per-CPU slot) well enough to exercise
// the IRQ-safe locking discipline (nesting, restore-on-unlock) without
// requiring ring-0 assembly. See SPEC_FULL.md's Open Questions §4.

var enabled atomic.Bool

func init() { enabled.Store(true) }

func EnableInterrupts() { enabled.Store(true) }

func DisableInterrupts() uintptr {
	was := enabled.Swap(false)
	if was {
		return 1
	}
	return 0
}

func RestoreInterrupts(token uintptr) {
	if token != 0 {
		enabled.Store(true)
	}
}

func Halt() {}

func FlushTLBEntry(virtAddr uintptr) {}

var activeTable uintptr

func SwitchPageTable(physAddr uintptr) { activeTable = physAddr }

func ActivePageTable() uintptr { return activeTable }
