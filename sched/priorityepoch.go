package sched

import (
	ksync "gokernel/sync"
	"gokernel/task"
)

// MaxPriority is the highest priority value a task may be assigned;
// priorities run 0..=MaxPriority, as spec.md §3 requires without fixing
// a concrete bound. 40 mirrors the traditional nice-value range and is
// an arbitrary but documented choice (see DESIGN.md).
const MaxPriority = 40

// minEpochLength is the "100" floor in
// max(total_priorities, 100) * (priority+1) / total_priorities.
const minEpochLength = 100

type priorityEntry struct {
	task            *task.Task
	priority        int
	tokensRemaining int
}

// PriorityEpoch is the token-bucket fair-share policy of spec.md §4.F.
// Tasks with tokens remaining live in haveTokens (FIFO); tasks that have
// spent their epoch's allotment move to outOfTokens until the next
// epoch recomputes everyone's budget. Both buckets are modeled as
// order-preserving slices (the spec calls outOfTokens a "set", but nothing
// depends on its order, and a slice keeps epoch recomputation
// deterministic for tests).
type PriorityEpoch struct {
	state ksync.MutexIrqSafe[*peState]
}

type peState struct {
	haveTokens  []*priorityEntry
	outOfTokens []*priorityEntry
	byTask      map[*task.Task]*priorityEntry
}

func NewPriorityEpoch() *PriorityEpoch {
	return &PriorityEpoch{state: ksync.NewMutexIrqSafe(&peState{
		byTask: make(map[*task.Task]*priorityEntry),
	})}
}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// recomputeEpoch recomputes every tracked task's token budget and drains
// outOfTokens into haveTokens. Must be called with the lock held.
func recomputeEpoch(s *peState) {
	total := 0
	for _, e := range s.byTask {
		total += e.priority + 1
	}
	if total == 0 {
		return
	}
	epochLength := total
	if epochLength < minEpochLength {
		epochLength = minEpochLength
	}
	for _, e := range s.byTask {
		e.tokensRemaining = epochLength * (e.priority + 1) / total
	}
	s.haveTokens = append(s.haveTokens, s.outOfTokens...)
	s.outOfTokens = nil
}

func (p *PriorityEpoch) Next() (*task.Task, bool) {
	var result *task.Task
	p.state.WithLock(func(s *peState) error {
		for {
			if len(s.haveTokens) == 0 {
				if len(s.outOfTokens) == 0 {
					return nil
				}
				recomputeEpoch(s)
				if len(s.haveTokens) == 0 {
					return nil
				}
			}
			e := s.haveTokens[0]
			s.haveTokens = s.haveTokens[1:]
			if e.task.State() != task.Runnable {
				delete(s.byTask, e.task)
				e.task.MarkDequeued()
				continue
			}
			e.tokensRemaining--
			if e.tokensRemaining <= 0 {
				s.outOfTokens = append(s.outOfTokens, e)
			} else {
				s.haveTokens = append(s.haveTokens, e)
			}
			result = e.task
			return nil
		}
	})
	return result, result != nil
}

func (p *PriorityEpoch) Add(t *task.Task) {
	if !t.TryEnqueue() {
		return
	}
	p.state.WithLock(func(s *peState) error {
		e := &priorityEntry{task: t, priority: 0, tokensRemaining: 1}
		s.byTask[t] = e
		s.haveTokens = append(s.haveTokens, e)
		return nil
	})
}

func (p *PriorityEpoch) Remove(t *task.Task) bool {
	removed := false
	p.state.WithLock(func(s *peState) error {
		e, ok := s.byTask[t]
		if !ok {
			return nil
		}
		delete(s.byTask, t)
		for i, q := range s.haveTokens {
			if q == e {
				s.haveTokens = append(s.haveTokens[:i], s.haveTokens[i+1:]...)
				removed = true
				return nil
			}
		}
		for i, q := range s.outOfTokens {
			if q == e {
				s.outOfTokens = append(s.outOfTokens[:i], s.outOfTokens[i+1:]...)
				removed = true
				return nil
			}
		}
		return nil
	})
	if removed {
		t.MarkDequeued()
	}
	return removed
}

func (p *PriorityEpoch) SetPriority(t *task.Task, priority int) bool {
	ok := false
	p.state.WithLock(func(s *peState) error {
		if e, found := s.byTask[t]; found {
			e.priority = clampPriority(priority)
			ok = true
		}
		return nil
	})
	return ok
}

func (p *PriorityEpoch) GetPriority(t *task.Task) (int, bool) {
	var priority int
	ok := false
	p.state.WithLock(func(s *peState) error {
		if e, found := s.byTask[t]; found {
			priority, ok = e.priority, true
		}
		return nil
	})
	return priority, ok
}
