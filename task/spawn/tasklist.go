package spawn

import (
	ksync "gokernel/sync"
	"gokernel/task"
)

// List is the kernel-wide TASKLIST of spec.md §4.I step 4: every spawned
// task, keyed by id, until its object is dropped.
type List struct {
	state  ksync.MutexIrqSafe[*listState]
	nextID task.ID
}

type listState struct {
	tasks map[task.ID]*task.Task
}

// NewList constructs an empty TASKLIST. ids are handed out starting at 1;
// 0 is reserved for a CPU's idle task, which callers construct and pin
// directly rather than through Spawn.
func NewList() *List {
	return &List{state: ksync.NewMutexIrqSafe(&listState{tasks: make(map[task.ID]*task.Task)}), nextID: 1}
}

func (l *List) allocateID() task.ID {
	id := l.nextID
	l.nextID++
	return id
}

func (l *List) insert(t *task.Task) {
	l.state.WithLock(func(s *listState) error {
		s.tasks[t.ID()] = t
		return nil
	})
}

// Get looks up a task by id.
func (l *List) Get(id task.ID) (*task.Task, bool) {
	var t *task.Task
	ok := false
	l.state.WithLock(func(s *listState) error {
		t, ok = s.tasks[id]
		return nil
	})
	return t, ok
}

// Remove drops a task from the TASKLIST, e.g. after join retrieves its
// exit reason and releases its stack.
func (l *List) Remove(id task.ID) {
	l.state.WithLock(func(s *listState) error {
		delete(s.tasks, id)
		return nil
	})
}

// Len reports how many tasks are currently tracked.
func (l *List) Len() int {
	n := 0
	l.state.WithLock(func(s *listState) error { n = len(s.tasks); return nil })
	return n
}

// ReapExited removes every Exited task from the list and releases its
// stack; it does not check whether the task's exit value has been taken
// or whether the task is restartable. This matches spec.md §4.I's "kernel stack stays alive until the
// task object is dropped ... for detached tasks, after the scheduler
// notices the exit on its next sweep." Callers run this periodically from
// an idle-task or deferred-interrupt loop.
func (l *List) ReapExited() {
	var doomed []*task.Task
	l.state.WithLock(func(s *listState) error {
		for id, t := range s.tasks {
			if t.Exited() {
				doomed = append(doomed, t)
				delete(s.tasks, id)
			}
		}
		return nil
	})
	for _, t := range doomed {
		if st := t.GetStack(); st != nil {
			st.Release()
		}
	}
}
