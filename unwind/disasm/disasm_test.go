package disasm

import (
	"runtime"
	"testing"
)

//go:noinline
func calleeForDecodeTest() uintptr {
	var pcs [1]uintptr
	n := runtime.Callers(2, pcs[:]) // skip Callers + this function
	if n == 0 {
		return 0
	}
	return pcs[0]
}

func TestDecodeCallAtFindsRealCallInstruction(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("x86 call-site decoding only applies on amd64")
	}
	retAddr := calleeForDecodeTest()
	if retAddr == 0 {
		t.Fatalf("runtime.Callers returned no frames")
	}

	site, err := DecodeCallAt(retAddr)
	if err != nil {
		t.Fatalf("DecodeCallAt: %v", err)
	}
	if site.Len <= 0 || site.Len > maxX86InstrLen {
		t.Fatalf("decoded length %d out of range", site.Len)
	}
}
