// Package unwind implements spec.md §4.K's panic entry point and the
// restart-vs-complete decision made once unwinding reaches a task's base
// frame.
//
// Go's own panic/defer/recover already performs real stack unwinding and
// already invokes every deferred cleanup (drop) routine along the way,
// before a recover() call observes the panic — that is exactly the
// "invoke registered cleanup routines by synthesizing the landing-pad
// entry" step spec.md describes, so this package does not reimplement
// stack walking for cleanup purposes. What it formalizes is everything
// around that recover() point: building the owned PanicInfo, capturing a
// backtrace of the real call stack (via runtime.Callers, falling back to
// gokernel/unwind/disasm to classify a frame's call site when no richer
// information is available), and deciding whether a restartable task
// restarts instead of exiting.
//
// Grounded on original_source/kernel/task/src/lib.rs's exit-on-unwind
// shape (no dedicated unwind crate exists under original_source/ to
// transliterate) and on the teacher's panic-dump convention for the
// backtrace format.
package unwind

import (
	"fmt"
	"runtime"

	"gokernel/task"
	"gokernel/unwind/disasm"
)

// maxBacktraceDepth bounds how many frames CaptureBacktrace walks.
const maxBacktraceDepth = 32

// Frame is one entry of a captured backtrace.
type Frame struct {
	PC       uintptr
	Function string
	File     string
	Line     int

	// CallSite is the decoded call instruction at PC, when one could be
	// found; CallSiteOK is false if disasm could not classify it (e.g.
	// the frame's return address doesn't land cleanly on a CALL, as
	// happens at the bottom of the captured stack).
	CallSite   disasm.CallSite
	CallSiteOK bool
}

// String renders a frame the way a panic dump would.
func (f Frame) String() string {
	if f.CallSiteOK {
		return fmt.Sprintf("%s\n\t%s:%d (call: %s)", f.Function, f.File, f.Line, f.CallSite)
	}
	return fmt.Sprintf("%s\n\t%s:%d", f.Function, f.File, f.Line)
}

// CaptureBacktrace walks the real call stack starting skip frames above
// its own caller, decoding each return address's call instruction as a
// best-effort frame-size oracle.
func CaptureBacktrace(skip int) []Frame {
	var pcs [maxBacktraceDepth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		entry := Frame{PC: fr.PC, Function: fr.Function, File: fr.File, Line: fr.Line}
		if site, err := disasm.DecodeCallAt(fr.PC + 1); err == nil {
			entry.CallSite, entry.CallSiteOK = site, true
		}
		out = append(out, entry)
		if !more {
			break
		}
	}
	return out
}

// PanicEntry is the panic entry point of spec.md §4.K: it builds an
// owned PanicInfo from a recovered panic value and the current call
// stack, and returns the Killed(Panic(...)) exit reason that the caller
// (gokernel/task/spawn's trampoline, which holds the recover()) should
// set as the task's exit reason before deciding whether to restart.
func PanicEntry(recovered any) task.KillReason {
	bt := CaptureBacktrace(1)
	info := task.PanicInfo{Message: fmt.Sprint(recovered)}
	if len(bt) > 0 {
		info.File = bt[0].File
		info.Line = bt[0].Line
	}
	return task.KillReason{Kind: task.KillPanic, Panic: info}
}

// ExceptionEntry converts an unrecoverable CPU exception (e.g. a page
// fault outside a recoverable region) into a Killed(Exception(vector))
// kill reason, per spec.md §4.K's last paragraph.
func ExceptionEntry(vector uint) task.KillReason {
	return task.KillReason{Kind: task.KillException, Exception: vector}
}

// ShouldRestart decides, once unwinding reaches a task's base frame,
// whether the task restarts (spec.md §4.I) instead of completing its
// exit. Restart requires the task to be restartable, and is suppressed
// for the Requested kill reason regardless (spec.md §9 Open Question 2).
func ShouldRestart(t *task.Task, kill task.KillReason) bool {
	if kill.Kind == task.KillRequested {
		return false
	}
	return t.Restartable()
}
