// Package interrupt implements spec.md §4.J's deferred-interrupt
// binding and §6's plain interrupt-vector registration: the hardware
// handler stays minimal (acknowledge + unblock), while the substantive
// work runs in a schedulable deferred task.
//
// Grounded on original_source/kernel/deferred_interrupt_tasks/src/lib.rs
// and kernel/interrupt_tasks/src/lib.rs for the registration-table shape,
// and on the teacher's IDT-slot-conflict convention for plain vector
// registration.
package interrupt

import (
	"fmt"

	"gokernel/kernelerr"
	ksync "gokernel/sync"
	"gokernel/task"
	"gokernel/task/spawn"
)

// IRQ identifies an interrupt request line (not a raw CPU vector number).
type IRQ uint8

// HandlerFunc is the minimal hardware-context handler: acknowledge the
// device and, typically, unblock the deferred task.
type HandlerFunc func()

// DeferredFunc is invoked once per iteration of a deferred task's body,
// in ordinary task context where blocking, allocation, and the full
// scheduler API are available.
type DeferredFunc func(arg any)

// Binding is what register_interrupt_handler returns: the installed
// handler plus the deferred task's handle, so the hardware handler's
// closure can unblock it.
type Binding struct {
	IRQ      IRQ
	Name     string
	Handler  HandlerFunc
	Deferred *task.Task

	wq *ksync.WaitQueue
}

// runqueueUnblocker is the subset of sched.Runqueue.Unblock a Binding
// needs: transition Blocked->Runnable and re-add to the policy. Declared
// structurally so gokernel/interrupt does not need to import gokernel/sched.
type runqueueUnblocker interface {
	Unblock(t *task.Task)
}

// Unblock is what a hardware handler calls when there is work for the
// deferred task: it transitions the task Blocked->Runnable and re-adds it
// to rq's policy, then wakes the deferred task's parked goroutine so it
// actually invokes deferred_fn again.
func (b *Binding) Unblock(rq runqueueUnblocker) {
	rq.Unblock(b.Deferred)
	b.wq.Wake()
}

// selfRef is a deferred task's own entry argument: it carries the
// WaitQueue the task's body parks on to simulate "self-block; yield"
// between iterations (there is no real preemptive scheduler driving
// goroutine execution in this hosted module, so parking on a WaitQueue is
// how a deferred task actually stops running until unblocked), plus a
// late-bound reference to its own Task (set once, right after spawn,
// before RegisterInterruptHandler returns — so no caller can observe it
// unset, since nothing can call Unblock before receiving the Binding).
type selfRef struct {
	wq       *ksync.WaitQueue
	task     *task.Task
	deferred DeferredFunc
	userArg  any
}

// Registry keeps every bound IRQ's Binding, guarded by an IRQ-safe lock
// since lookups can happen from within an interrupt handler.
type Registry struct {
	state ksync.MutexIrqSafe[*registryState]

	list   *spawn.List
	stacks *spawn.StackAllocator
	rq     spawn.Enqueuer
}

type registryState struct {
	bindings      map[IRQ]*Binding
	plainHandlers map[IRQ]uintptr
}

// NewRegistry constructs an empty Registry. list/stacks/rq are the
// spawn-time dependencies deferred tasks are built with.
func NewRegistry(list *spawn.List, stacks *spawn.StackAllocator, rq spawn.Enqueuer) *Registry {
	return &Registry{
		state: ksync.NewMutexIrqSafe(&registryState{
			bindings:      make(map[IRQ]*Binding),
			plainHandlers: make(map[IRQ]uintptr),
		}),
		list:   list,
		stacks: stacks,
		rq:     rq,
	}
}

// RegisterInterrupt is spec.md §6's plain register_interrupt(vector,
// handler_fn): installs handlerAddr in irq's slot, or fails returning the
// address of the handler already installed there. Sharing is not
// supported.
func (r *Registry) RegisterInterrupt(irq IRQ, handlerAddr uintptr) error {
	var conflict uintptr
	var ok bool
	r.state.WithLock(func(s *registryState) error {
		if existing, present := s.plainHandlers[irq]; present {
			conflict, ok = existing, true
			return nil
		}
		s.plainHandlers[irq] = handlerAddr
		return nil
	})
	if ok {
		return fmt.Errorf("register interrupt %d: handler already at %#x: %w", irq, conflict, kernelerr.ErrIrqInUse)
	}
	return nil
}

// RegisterInterruptHandler is spec.md §4.J's deferred-interrupt binding:
//
//  1. Installs handler in irq's slot, failing with ErrIrqInUse if taken.
//  2. Spawns a task whose body is: loop { invoke deferred(arg); self-block }.
//     The task starts Blocked.
//  3. Returns the Binding so handler's closure can unblock the deferred
//     task when there is work to do.
func (r *Registry) RegisterInterruptHandler(irq IRQ, handler HandlerFunc, deferred DeferredFunc, arg any, name string) (*Binding, error) {
	installed := false
	r.state.WithLock(func(s *registryState) error {
		if _, present := s.bindings[irq]; present {
			return nil
		}
		s.bindings[irq] = &Binding{IRQ: irq, Name: name, Handler: handler}
		installed = true
		return nil
	})
	if !installed {
		return nil, fmt.Errorf("register interrupt handler %d (%s): %w", irq, name, kernelerr.ErrIrqInUse)
	}

	ref := &selfRef{wq: ksync.NewWaitQueue(), deferred: deferred, userArg: arg}
	body := func(a any) int32 {
		ref := a.(*selfRef)
		for {
			ref.wq.Wait()
			ref.deferred(ref.userArg)
			ref.task.Block()
		}
	}
	b := spawn.NewTaskBuilder(fmt.Sprintf("deferred[%s]", name), body, ref).BlockInitially()
	tk, err := spawn.Spawn(b, r.list, r.stacks, r.rq)
	if err != nil {
		r.state.WithLock(func(s *registryState) error {
			delete(s.bindings, irq)
			return nil
		})
		return nil, fmt.Errorf("register interrupt handler %d (%s): %w", irq, name, err)
	}
	ref.task = tk

	var binding *Binding
	r.state.WithLock(func(s *registryState) error {
		s.bindings[irq].Deferred = tk
		s.bindings[irq].wq = ref.wq
		binding = s.bindings[irq]
		return nil
	})
	return binding, nil
}

// Lookup returns the Binding installed for irq, if any. Safe to call from
// interrupt context.
func (r *Registry) Lookup(irq IRQ) (*Binding, bool) {
	var b *Binding
	ok := false
	r.state.WithLock(func(s *registryState) error {
		b, ok = s.bindings[irq]
		return nil
	})
	return b, ok
}

// Dispatch is the low-level entry point an architecture-specific IDT
// trampoline calls on every interrupt for irq: it looks up and invokes
// the installed handler, doing nothing if none is bound.
func (r *Registry) Dispatch(irq IRQ) {
	if b, ok := r.Lookup(irq); ok && b.Handler != nil {
		b.Handler()
	}
}
