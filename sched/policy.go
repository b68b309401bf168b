// Package sched implements the pluggable scheduling policies and
// per-CPU dispatch loop of spec.md §4.F–§4.I.
//
// Grounded on Theseus's runqueue_trait
// (original_source/kernel/runqueue_trait/src/lib.rs) for the
// next/add/remove interface boundary spec.md §9 calls for, and on
// scheduler_epoch (original_source/kernel/scheduler_epoch/src/lib.rs,
// queue.rs) for the priority-epoch token-bucket algorithm.
package sched

import "gokernel/task"

// Policy is the scheduler-policy interface boundary: next, add, remove.
// Swapping policies on a CPU means draining the old one into a new one
// via these three operations (spec.md §9).
type Policy interface {
	// Next picks the next runnable task, removing non-runnable tasks it
	// encounters along the way. Returns ok=false if nothing is runnable,
	// signaling the caller to dispatch the idle task.
	Next() (t *task.Task, ok bool)

	// Add inserts t into the policy's bookkeeping. A concurrent Add of a
	// task that is already tracked (its on-run-queue flag is already
	// set) is a no-op, per spec.md §8.6.
	Add(t *task.Task)

	// Remove drops t from the policy's bookkeeping, e.g. because it
	// exited. Returns false if t was not tracked.
	Remove(t *task.Task) bool
}

// PriorityPolicy is implemented by policies that support per-task
// priorities; currently only PriorityEpoch.
type PriorityPolicy interface {
	Policy
	SetPriority(t *task.Task, priority int) bool
	GetPriority(t *task.Task) (int, bool)
}
