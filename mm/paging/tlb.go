package paging

import "gokernel/mm/page"

// ShootdownFunc broadcasts a TLB invalidation for a page range to other
// CPUs. The default is a no-op, appropriate for uniprocessor configs or
// early boot; the rest of the system (not specified here) installs a real
// IPI-based implementation exactly once.
type ShootdownFunc func(page.Range)

var shootdown ShootdownFunc

// SetShootdownCallback installs the single system-wide TLB shootdown
// callback. Installing a second one is a programming error and panics,
// matching spec.md §6's "installed once" contract.
func SetShootdownCallback(f ShootdownFunc) {
	if shootdown != nil {
		panic("paging: TLB shootdown callback already installed")
	}
	shootdown = f
}

func notifyShootdown(r page.Range) {
	if shootdown != nil {
		shootdown(r)
	}
}
