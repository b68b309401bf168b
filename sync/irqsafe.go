// Package sync provides the interrupt-safe synchronization primitives
// required when the same datum is touched from both task context and
// interrupt context: MutexIrqSafe, RwLockIrqSafe, Condvar, and WaitQueue.
// Grounded on Theseus's libs/irq_safety (mutex_irqsafe.rs) and
// kernel/sync/src/condvar.rs, kernel/wait_event/src/lib.rs.
package sync

import (
	"sync"

	"gokernel/cpu"
)

// MutexIrqSafe guards a value of type T by first disabling local
// interrupts, then taking an underlying spin-style mutex; it releases in
// reverse order. Every per-CPU runqueue lock and every free-frame/free-page
// list lock in this module is one of these.
type MutexIrqSafe[T any] struct {
	mu  sync.Mutex
	val T
}

// NewMutexIrqSafe constructs a MutexIrqSafe holding the given initial
// value.
func NewMutexIrqSafe[T any](v T) MutexIrqSafe[T] {
	return MutexIrqSafe[T]{val: v}
}

// WithLock disables interrupts, locks, runs f with the guarded value, then
// unlocks and restores interrupts in reverse order. Using a callback
// rather than Lock/Unlock methods makes it impossible to forget the
// restore step, since Go has no destructors.
func (m *MutexIrqSafe[T]) WithLock(f func(T) error) error {
	token := cpu.DisableInterrupts()
	m.mu.Lock()
	err := f(m.val)
	m.mu.Unlock()
	cpu.RestoreInterrupts(token)
	return err
}

// Value returns a snapshot of the guarded value without taking the lock.
// Safe only for values that are themselves already synchronized (e.g. a
// pointer to a structure with its own locking), matching how callers use
// it elsewhere in this module.
func (m *MutexIrqSafe[T]) Value() T { return m.val }

// RwLockIrqSafe is the shared/exclusive analogue of MutexIrqSafe.
type RwLockIrqSafe[T any] struct {
	mu  sync.RWMutex
	val T
}

// NewRwLockIrqSafe constructs an RwLockIrqSafe holding the given initial
// value.
func NewRwLockIrqSafe[T any](v T) RwLockIrqSafe[T] {
	return RwLockIrqSafe[T]{val: v}
}

// WithRLock takes the lock for reading.
func (m *RwLockIrqSafe[T]) WithRLock(f func(T) error) error {
	token := cpu.DisableInterrupts()
	m.mu.RLock()
	err := f(m.val)
	m.mu.RUnlock()
	cpu.RestoreInterrupts(token)
	return err
}

// WithWLock takes the lock for writing.
func (m *RwLockIrqSafe[T]) WithWLock(f func(T) error) error {
	token := cpu.DisableInterrupts()
	m.mu.Lock()
	err := f(m.val)
	m.mu.Unlock()
	cpu.RestoreInterrupts(token)
	return err
}
