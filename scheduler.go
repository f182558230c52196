package rtkernel

// recomputeActiveLocked implements spec section 4.4: scan priority classes
// from highest to lowest, the first non-empty due-list's position-0 task is
// the active task; idle runs if every class is empty. If the result differs
// from k.activeTask, the baton is hailed to the new active task and an
// EventPreempt trace entry is emitted. Must be called with k.mu held.
func (k *Kernel) recomputeActiveLocked() {
	next := k.pickActiveLocked()
	if next == k.activeTask {
		return
	}
	prev := k.activeTask
	k.emit(SchedulingEvent{
		Kind:    EventPreempt,
		SysTime: k.sysTime,
		Task:    next,
		Other:   prev,
	})
	k.dispatchToLocked(next)
}

// dispatchToLocked installs next as the active task and hands it the baton,
// injecting its posted-events snapshot (spec section 4.5's return-value
// injection) if it was suspended, or zero otherwise. It performs the
// hand-off unconditionally; its caller, recomputeActiveLocked, only calls it
// when next differs from k.activeTask.
func (k *Kernel) dispatchToLocked(next TaskID) {
	k.activeTask = next
	var injected EventVector
	if next != idleTaskID {
		st := k.table.tasks[next]
		injected = st.postedEvents
		st.postedEvents = 0
	}
	k.handOffLocked(next, injected)
}

// pickActiveLocked is the pure selection function of spec section 4.4,
// without any side effects on the task table.
func (k *Kernel) pickActiveLocked() TaskID {
	class := k.table.highestNonEmpty()
	if class < 0 {
		return idleTaskID
	}
	return k.table.due[class][0]
}
