// Built only under -tags gokernel_freestanding (see gokernel/cpu's
// cpu.go for why: no backing .s file ships in this module, and the
// default untagged build instead compiles switch_hosted.go).
//go:build gokernel_freestanding

package context

// SwitchContext pushes the outgoing task's callee-saved registers for
// personality onto its stack, writes the resulting stack pointer to
// *outgoing, loads incoming, pops its callee-saved registers, and
// returns into it. Declared here with no body; backed by per-CPU-arch
// assembly not included in this module.
func SwitchContext(outgoing *StackPointer, incoming StackPointer, personality Personality)
