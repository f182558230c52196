package rtkernel

// Tic is the Go analogue of the timer ISR (spec section 4.3): advance
// system time by one, update every suspended task's timers, run the wake
// test, apply round-robin slice accounting to the active task, and
// recompute the active task. It is safe to call from any goroutine (a real
// ticker, a simulated hardware peripheral, or a test driving the kernel
// deterministically); the kernel's mutex is the Go realization of spec
// section 4.5's "set of interrupts that can cause scheduling disabled".
func (k *Kernel) Tic() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state.Load() != Running {
		return
	}
	k.sysTime = (k.sysTime + 1) & k.timeMask
	k.detectOverrunsLocked()
	k.advanceSuspendedLocked()
	k.applyRoundRobinLocked()
	k.emit(SchedulingEvent{Kind: EventTic, SysTime: k.sysTime})
	k.recomputeActiveLocked()
}

// advanceSuspendedLocked is spec section 4.3 step 2: for each task in the
// suspended list (snapshotted in insertion order before any mutation), test
// and update its timers, then move it to due if its wake condition is
// satisfied.
func (k *Kernel) advanceSuspendedLocked() {
	snapshot := append([]TaskID(nil), k.table.susp...)
	for _, id := range snapshot {
		st := k.table.tasks[id]

		if st.armed && st.absoluteTarget == k.sysTime {
			st.postedEvents |= AbsoluteTimerBit
		}
		if st.delayCounter > 0 {
			st.delayCounter--
			if st.delayCounter == 0 {
				st.postedEvents |= DelayTimerBit
			}
		}

		if wakeCondition(st) {
			k.wakeLocked(id, st)
		}
	}
}

// wakeLocked moves id from the suspended list to the end of its priority
// class's due-list and records the transition on the trace channel.
func (k *Kernel) wakeLocked(id TaskID, st *taskState) {
	k.table.removeFromSuspended(id)
	k.table.moveToDue(id, st.cfg.Priority, k.cfg.MaxTasksPerClass)
	k.emit(SchedulingEvent{Kind: EventWake, SysTime: k.sysTime, Task: id})
}

// detectOverrunsLocked implements spec section 4.3's overrun rule: a task
// whose absolute-timer target is reached while it is due (i.e. not in the
// suspended list, so step 2 above never examined it this tic) has
// overrun its deadline. Tic runs this before advanceSuspendedLocked, so a
// task woken by its absolute timer on this same tic is not counted. Every due task, including the active one, is
// checked; idle has no descriptor and is exempt.
func (k *Kernel) detectOverrunsLocked() {
	for class := range k.table.due {
		for _, id := range k.table.due[class] {
			st := k.table.tasks[id]
			if !st.armed || st.absoluteTarget != k.sysTime {
				continue
			}
			st.overrun++
			switch k.cfg.OverrunPolicy {
			case AdvanceTarget:
				st.absoluteTarget = (st.absoluteTarget + st.period) & k.timeMask
			case ImmediatelyDue:
				// Target is left unchanged: the task is already due, so no
				// further scheduling action is needed beyond the count.
			}
			k.emit(SchedulingEvent{Kind: EventOverrun, SysTime: k.sysTime, Task: id, Overruns: st.overrun})
			if k.limiter != nil {
				if _, ok := k.limiter.Allow("overrun"); ok {
					k.logger.Warnf("tic", "task %d overran absolute-time target (count=%d)", id, st.overrun)
				}
			}
		}
	}
}

// applyRoundRobinLocked is spec section 4.3 step 3: decrement the active
// task's round-robin counter; on reaching zero, reload it and rotate the
// active task to the end of its class's due-list.
func (k *Kernel) applyRoundRobinLocked() {
	if k.activeTask == idleTaskID {
		return
	}
	st := k.table.tasks[k.activeTask]
	if st.cfg.RoundRobinSlice == 0 || st.rrBudget == 0 {
		return
	}
	st.rrBudget--
	if st.rrBudget != 0 {
		return
	}
	st.rrBudget = uint32(st.cfg.RoundRobinSlice)
	k.table.rotate(st.cfg.Priority)
	k.emit(SchedulingEvent{Kind: EventRoundRobinRotate, SysTime: k.sysTime, Task: k.activeTask})
}

// PostEventISR is the Go analogue of a user-defined interrupt posting an
// event (spec section 4.3, "post-from-ISR"): classify and deliver bits to
// the appropriate suspended task(s), run the wake test, then recompute the
// active task. Safe to call from any goroutine, simulating a peripheral's
// interrupt handler.
func (k *Kernel) PostEventISR(bits EventVector) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state.Load() != Running {
		return
	}
	k.postLocked(bits)
	k.recomputeActiveLocked()
}

// postLocked dispatches each set, classifiable bit of bits to its semantic
// class: broadcast bits are set in every suspended task's posted-events
// vector; mutex bits transfer to the single highest-priority suspended
// waiter; semaphore bits wake one waiter or, absent one, increment the
// counter (spec section 4.3). Timer bits are never posted externally and
// are masked out.
func (k *Kernel) postLocked(bits EventVector) {
	bits &^= timerBits
	for i := 0; i < maxClassifiableBits; i++ {
		bit := EventVector(1) << uint(i)
		if bits&bit == 0 {
			continue
		}
		class, idx := k.layout.classify(bit)
		switch class {
		case classBroadcast:
			k.broadcastBitLocked(bit)
		case classMutex:
			k.transferMutexLocked(bit, idx)
		case classSemaphore:
			k.postSemaphoreLocked(bit, idx)
		}
	}
	k.wakeTestLocked()
}

// wakeTestLocked re-runs the due/suspended wake test over the current
// suspended list without touching any timer field, the half of spec section
// 4.3 step 2 that an event post (as opposed to a tic) needs to repeat.
func (k *Kernel) wakeTestLocked() {
	snapshot := append([]TaskID(nil), k.table.susp...)
	for _, id := range snapshot {
		st := k.table.tasks[id]
		if wakeCondition(st) {
			k.wakeLocked(id, st)
		}
	}
}

// broadcastBitLocked sets bit in every currently suspended task.
func (k *Kernel) broadcastBitLocked(bit EventVector) {
	for _, id := range k.table.susp {
		k.table.tasks[id].postedEvents |= bit
	}
}

// highestPriorityWaiterLocked returns the suspended task with the highest
// priority class whose wait mask includes bit, breaking ties by insertion
// order in the suspended list, or idleTaskID if no task is waiting on it.
func (k *Kernel) highestPriorityWaiterLocked(bit EventVector) TaskID {
	best := idleTaskID
	bestPriority := -1
	for _, id := range k.table.susp {
		st := k.table.tasks[id]
		if st.waitMask&bit == 0 {
			continue
		}
		if st.cfg.Priority > bestPriority {
			best = id
			bestPriority = st.cfg.Priority
		}
	}
	return best
}

// transferMutexLocked hands bit to the single highest-priority waiter, the
// "ownership transfer" spec section 4.3 describes. If nobody is waiting the
// mutex is simply left free; the kernel does not separately track
// ownership outside of the posted-events vector.
func (k *Kernel) transferMutexLocked(bit EventVector, idx int) {
	target := k.highestPriorityWaiterLocked(bit)
	if target == idleTaskID {
		return
	}
	st := k.table.tasks[target]
	st.postedEvents |= bit
	k.emit(SchedulingEvent{Kind: EventMutexTransfer, SysTime: k.sysTime, Task: target, Bit: bit})
	_ = idx
}

// postSemaphoreLocked wakes one suspended waiter on bit, if any, else
// increments the semaphore's counter (spec section 4.3).
func (k *Kernel) postSemaphoreLocked(bit EventVector, idx int) {
	target := k.highestPriorityWaiterLocked(bit)
	if target == idleTaskID {
		k.semCounters[idx]++
		k.emit(SchedulingEvent{Kind: EventSemaphorePost, SysTime: k.sysTime, Task: idleTaskID, Bit: bit})
		return
	}
	st := k.table.tasks[target]
	st.postedEvents |= bit
	k.emit(SchedulingEvent{Kind: EventSemaphorePost, SysTime: k.sysTime, Task: target, Bit: bit})
}

// tryAcquireSemaphoresLocked implements spec section 4.3's "acquiring a
// semaphore event in wait_for_event decrements the counter": for each
// semaphore bit present in mask whose counter is currently nonzero, the
// counter is decremented and the bit is returned set, as if already
// posted. Bits whose counter is zero are left clear (the task must
// actually suspend to wait for them).
func (k *Kernel) tryAcquireSemaphoresLocked(mask EventVector) EventVector {
	var acquired EventVector
	semMask := k.layout.semaphoreMask()
	for i := 0; i < maxClassifiableBits; i++ {
		bit := EventVector(1) << uint(i)
		if mask&bit == 0 || semMask&bit == 0 {
			continue
		}
		_, idx := k.layout.classify(bit)
		if k.semCounters[idx] > 0 {
			k.semCounters[idx]--
			acquired |= bit
		}
	}
	return acquired
}
