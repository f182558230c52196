package rtkernel

// TaskSnapshot is a point-in-time, race-free copy of one task's scheduling
// state, the diagnostic surface cmd/rtkernel-shell and any other external
// monitor inspects instead of reaching into taskState directly (which is
// unexported and guarded by k.mu).
type TaskSnapshot struct {
	ID       TaskID
	Priority int
	Due      bool // true if currently in a due-list, false if suspended
	WaitMask EventVector
	Posted   EventVector
	Overrun  uint32
}

// KernelSnapshot is a consistent, race-free copy of the kernel's entire
// scheduling state at one instant (spec section 3's due-list matrix and
// suspended list, reified for inspection).
type KernelSnapshot struct {
	SysTime    uint32
	ActiveTask TaskID
	Due        [][]TaskID // Due[class] is a copy of that class's FIFO
	Suspended  []TaskID
	Tasks      []TaskSnapshot
}

// Snapshot takes the kernel mutex and returns a fully-copied view of the
// current scheduling state; safe to call from any goroutine at any time,
// including concurrently with Tic and PostEventISR.
func (k *Kernel) Snapshot() KernelSnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	due := make([][]TaskID, len(k.table.due))
	for c, list := range k.table.due {
		due[c] = append([]TaskID(nil), list...)
	}
	susp := append([]TaskID(nil), k.table.susp...)

	dueSet := make(map[TaskID]bool, len(k.table.tasks))
	for _, list := range k.table.due {
		for _, id := range list {
			dueSet[id] = true
		}
	}

	tasks := make([]TaskSnapshot, len(k.table.tasks))
	for id, st := range k.table.tasks {
		tasks[id] = TaskSnapshot{
			ID:       TaskID(id),
			Priority: st.cfg.Priority,
			Due:      dueSet[TaskID(id)],
			WaitMask: st.waitMask,
			Posted:   st.postedEvents,
			Overrun:  st.overrun,
		}
	}

	return KernelSnapshot{
		SysTime:    k.sysTime,
		ActiveTask: k.activeTask,
		Due:        due,
		Suspended:  susp,
		Tasks:      tasks,
	}
}
