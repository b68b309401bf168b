package sync

import (
	"sync"
	"time"
)

// WaitResult reports why a timed condvar wait returned.
type WaitResult int

const (
	// Notified means the wait returned because of a notify call.
	Notified WaitResult = iota
	// TimedOut means the wait returned because its deadline elapsed.
	TimedOut
)

// Condvar is a condition variable usable with any external sync.Locker.
// Wait and WaitTimeout implement the three-step protocol from spec.md §4.L:
// the caller re-checks the condition under the lock, enqueues itself,
// drops the lock, blocks, and on wakeup reacquires and re-checks — so a
// notify that happens after enqueue (which can only happen while the
// caller still holds the lock) is never lost.
type Condvar struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// NewCondvar constructs a ready-to-use Condvar.
func NewCondvar() *Condvar { return &Condvar{} }

func (c *Condvar) enqueue() chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

func (c *Condvar) remove(ch chan struct{}) {
	c.mu.Lock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Wait blocks locker.Unlock()'d until predicate() is true, reacquiring
// locker before returning. locker must be held by the caller on entry and
// is held again on return.
func (c *Condvar) Wait(locker sync.Locker, predicate func() bool) {
	for !predicate() {
		ch := c.enqueue()
		locker.Unlock()
		<-ch
		locker.Lock()
	}
}

// WaitTimeout is Wait with a bound on how long to block. It returns
// Notified if predicate() became true (checked once more after any
// wakeup, timed out or not) and TimedOut if the deadline elapsed first
// without the predicate becoming true.
func (c *Condvar) WaitTimeout(locker sync.Locker, predicate func() bool, timeout time.Duration) WaitResult {
	deadline := time.Now().Add(timeout)
	for {
		if predicate() {
			return Notified
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return TimedOut
		}
		ch := c.enqueue()
		locker.Unlock()
		select {
		case <-ch:
			locker.Lock()
		case <-time.After(remaining):
			c.remove(ch)
			locker.Lock()
			if predicate() {
				return Notified
			}
			return TimedOut
		}
	}
}

// NotifyOne wakes exactly one waiter, if any is currently enqueued.
func (c *Condvar) NotifyOne() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	ch := c.waiters[0]
	c.waiters = c.waiters[1:]
	ch <- struct{}{}
}

// NotifyAll wakes every currently enqueued waiter.
func (c *Condvar) NotifyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		ch <- struct{}{}
	}
	c.waiters = nil
}

// WaitQueue pairs a Condvar with its own mutex, for callers that don't
// already hold an external lock covering the condition (e.g. task
// block/unblock, where the condition is simply "has someone called
// Wake").
type WaitQueue struct {
	mu    sync.Mutex
	cond  *Condvar
	woken bool
}

// NewWaitQueue constructs a ready-to-use WaitQueue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{cond: NewCondvar()}
}

// Wait blocks until Wake has been called at least once since the last
// Wait returned.
func (w *WaitQueue) Wait() {
	w.mu.Lock()
	w.cond.Wait(&w.mu, func() bool { return w.woken })
	w.woken = false
	w.mu.Unlock()
}

// WaitTimeout is Wait bounded by timeout.
func (w *WaitQueue) WaitTimeout(timeout time.Duration) WaitResult {
	w.mu.Lock()
	res := w.cond.WaitTimeout(&w.mu, func() bool { return w.woken }, timeout)
	if res == Notified {
		w.woken = false
	}
	w.mu.Unlock()
	return res
}

// Wake marks the queue woken and notifies one waiter.
func (w *WaitQueue) Wake() {
	w.mu.Lock()
	w.woken = true
	w.mu.Unlock()
	w.cond.NotifyOne()
}
