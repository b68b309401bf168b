package page

import "testing"

func TestCanonical(t *testing.T) {
	cases := []struct {
		addr uintptr
		want bool
	}{
		{0x0, true},
		{0x7fff_ffff_f000, true},
		{0x8000_0000_0000, false},
		{0xffff_8000_0000_0000, true},
		{0xffff_0000_0000_0000, false},
	}
	for _, c := range cases {
		if got := Canonical(c.addr); got != c.want {
			t.Errorf("Canonical(%#x) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestAllocateAndRelease(t *testing.T) {
	a, err := New([]Region{{Range: RangeOf(0x1000, 0x1000)}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ap, err := a.AllocatePages(4)
	if err != nil {
		t.Fatalf("AllocatePages: %v", err)
	}
	if ap.Len() != 4 {
		t.Fatalf("got %d pages, want 4", ap.Len())
	}
	ap.Release()

	ap2, err := a.AllocatePagesAt(ap.Range().Start.Addr(), 4)
	if err != nil {
		t.Fatalf("re-allocate after release: %v", err)
	}
	ap2.Release()
}
