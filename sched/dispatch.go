package sched

import (
	"sync/atomic"

	"gokernel/task"
	"gokernel/task/context"
)

// Runqueue is one CPU's scheduling state: the pluggable policy plus the
// idle task bound to this CPU (spec.md §5: "each CPU has exactly one
// task currently executing plus an idle task").
type Runqueue struct {
	cpu     int
	policy  Policy
	idle    *task.Task
	current *task.Task

	dispatches atomic.Uint64
}

// NewRunqueue constructs a Runqueue for one CPU. idle starts out as the
// current task, matching a CPU that has booted but not yet dispatched
// anything.
func NewRunqueue(cpu int, policy Policy, idle *task.Task) *Runqueue {
	idle.MarkRunnable()
	return &Runqueue{cpu: cpu, policy: policy, idle: idle, current: idle}
}

func (r *Runqueue) CPU() int          { return r.cpu }
func (r *Runqueue) Policy() Policy     { return r.policy }
func (r *Runqueue) Current() *task.Task { return r.current }

// Unblock transitions t Blocked->Runnable and adds it to this CPU's
// policy. Add's internal TryEnqueue makes a concurrent unblock of an
// already-on-queue task a no-op and an unblock of an off-queue blocked
// task enqueue exactly once, satisfying spec.md §8.6.
func (r *Runqueue) Unblock(t *task.Task) {
	t.Unblock()
	r.policy.Add(t)
}

// Schedule is the dispatch loop of spec.md §4.F–I: re-add the
// currently-running task if it is still runnable, pick the next
// runnable task from the policy (or idle if none), and context-switch
// into it if it differs from the current task.
func (r *Runqueue) Schedule() *task.Task {
	prev := r.current
	if prev != r.idle && prev.State() == task.Runnable {
		r.policy.Add(prev)
	}

	next, ok := r.policy.Next()
	if !ok {
		next = r.idle
	}

	if next != prev {
		outgoing := context.StackPointer(prev.SavedContext())
		context.SwitchContext(&outgoing, context.StackPointer(next.SavedContext()), context.NoSIMD)
		prev.SetSavedContext(uintptr(outgoing))
	}
	r.current = next
	r.dispatches.Add(1)
	return next
}

// DispatchCount reports how many times Schedule has run on this CPU,
// for gokernel/diag/profile's per-CPU dispatch sampling.
func (r *Runqueue) DispatchCount() uint64 { return r.dispatches.Load() }
