package sched

import (
	"gokernel/task"

	ksync "gokernel/sync"
)

// RoundRobin is a FIFO runqueue: next pops from the front, skipping (and
// permanently dropping) any task no longer Runnable; add pushes to the
// back. Guarded by a single IRQ-safe lock, matching spec.md §5's "one
// lock per CPU runqueue, taken IRQ-safe."
type RoundRobin struct {
	state ksync.MutexIrqSafe[*rrState]
}

type rrState struct {
	queue []*task.Task
}

// NewRoundRobin constructs an empty round-robin policy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{state: ksync.NewMutexIrqSafe(&rrState{})}
}

func (r *RoundRobin) Next() (*task.Task, bool) {
	var result *task.Task
	r.state.WithLock(func(s *rrState) error {
		for len(s.queue) > 0 {
			t := s.queue[0]
			s.queue = s.queue[1:]
			t.MarkDequeued()
			if t.State() == task.Runnable {
				result = t
				return nil
			}
		}
		return nil
	})
	return result, result != nil
}

func (r *RoundRobin) Add(t *task.Task) {
	if !t.TryEnqueue() {
		return
	}
	r.state.WithLock(func(s *rrState) error {
		s.queue = append(s.queue, t)
		return nil
	})
}

func (r *RoundRobin) Remove(t *task.Task) bool {
	removed := false
	r.state.WithLock(func(s *rrState) error {
		for i, q := range s.queue {
			if q == t {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				removed = true
				break
			}
		}
		return nil
	})
	if removed {
		t.MarkDequeued()
	}
	return removed
}

// Len reports the number of tasks currently queued (for tests/diagnostics).
func (r *RoundRobin) Len() int {
	n := 0
	r.state.WithLock(func(s *rrState) error { n = len(s.queue); return nil })
	return n
}
