package spawn

import (
	"gokernel/task"
	"gokernel/unwind"
)

// runTrampoline is the bootstrap trampoline of spec.md §4.I step 3: it
// "re-enables interrupts" (there is nothing to re-enable in this hosted
// simulation — the equivalent real-hardware step lives in the
// architecture-specific assembly this trampoline would be entered from),
// invokes the entry function with its argument, and converts the result
// (or a panic) into an exit reason. A restartable task that panics or
// hits an unrecoverable condition loops back into its cloned entry point
// instead of exiting, per spec.md §4.I's restartable variant, unless the
// kill reason is Requested (spec.md §9 Open Question 2).
func runTrampoline(t *task.Task, stacks *StackAllocator, entry EntryFunc, arg any) {
	for {
		reason, restart := invokeOnce(t, entry, arg)
		if !restart {
			t.Exit(reason)
			return
		}
		if t.Exited() {
			// A Requested kill (RequestKill) raced in and forced the
			// task Exited while entry was unwinding; honor it instead
			// of restarting.
			return
		}

		ri := t.RestartInfo()
		if newStack, err := stacks.Zeroed(); err == nil {
			if old := t.GetStack(); old != nil {
				old.Release()
			}
			t.SetStack(newStack)
		}
		if ri.OnRestart != nil {
			ri.OnRestart()
		}
		entry, arg = ri.Entry, ri.Arg
	}
}

// invokeOnce runs entry(arg) under recover. A panic is converted to a
// Killed(Panic(...)) exit reason via unwind.PanicEntry (which also
// captures a backtrace of the real call stack); unwind.ShouldRestart then
// decides whether this is a final exit reason or a restart.
func invokeOnce(t *task.Task, entry EntryFunc, arg any) (reason task.ExitReason, restart bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		kill := unwind.PanicEntry(r)
		if unwind.ShouldRestart(t, kill) {
			restart = true
			return
		}
		reason = task.KilledBy(kill)
	}()
	value := entry(arg)
	reason = task.CompletedWith(value)
	return
}

// RequestKill marks t's exit reason as Killed(Requested), suppressing
// any restart even if t is restartable, per spec.md §9 Open Question 2.
// This only has an effect if called before t's trampoline has already
// produced a different exit reason; callers typically pair it with
// something that also causes entry's next blocking call to return or
// panic (this package does not itself provide preemption).
func RequestKill(t *task.Task) bool {
	return t.Exit(task.KilledBy(task.KillReason{Kind: task.KillRequested}))
}
