// Package disasm decodes the call instruction preceding a return
// address, for use as a fallback frame-size oracle when gokernel/unwind
// is walking frames without a complete unwind-table entry for them (the
// normal case: this hosted module has no real .eh_frame/LSDA to consult,
// only the addresses Go's own runtime.Callers exposes).
//
// Grounded on golang.org/x/arch/x86/x86asm's own disassembler-from-a-byte-
// stream examples; biscuit reserves this dependency for exactly this
// role (classifying call-site length when printing kernel stack traces).
package disasm

import (
	"fmt"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// maxX86InstrLen bounds how far back from a return address the call
// instruction that produced it can start: no valid x86-64 instruction
// exceeds 15 bytes.
const maxX86InstrLen = 15

// CallSite is the decoded call instruction whose next-instruction
// boundary is the return address it was decoded from.
type CallSite struct {
	Inst x86asm.Inst
	Len  int
}

// DecodeCallAt reads the bytes preceding returnAddr out of this
// process's own text segment and searches backwards for the call
// instruction that produced it: the only valid starting offset is one
// whose decoded instruction is a CALL and whose length lands exactly on
// returnAddr. This mirrors how a real unwinder falls back to
// instruction-length disassembly when no unwind-table entry covers a
// frame.
func DecodeCallAt(returnAddr uintptr) (CallSite, error) {
	if returnAddr < maxX86InstrLen {
		return CallSite{}, fmt.Errorf("decode call at %#x: address too low", returnAddr)
	}
	for back := 1; back <= maxX86InstrLen; back++ {
		start := returnAddr - uintptr(back)
		code := unsafe.Slice((*byte)(unsafe.Pointer(start)), maxX86InstrLen+1)
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			continue
		}
		if inst.Len != back {
			continue
		}
		if inst.Op != x86asm.CALL && inst.Op != x86asm.CALLF {
			continue
		}
		return CallSite{Inst: inst, Len: inst.Len}, nil
	}
	return CallSite{}, fmt.Errorf("decode call at %#x: no candidate CALL instruction found", returnAddr)
}

// String renders the decoded instruction in GNU/AT&T-ish syntax via
// x86asm's own formatter, for panic dumps.
func (c CallSite) String() string {
	return x86asm.GNUSyntax(c.Inst, 0, nil)
}
