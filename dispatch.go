package rtkernel

// WaitForEvent is the primary suspend primitive (spec section 6 "wait for
// event"). It suspends the calling task until either its wake condition
// (mask, waitForAll) is satisfied or the timeout elapses, whichever comes
// first, and returns the snapshot of posted events at the moment it woke.
// timeout is in tics; a timeout of 0 still suspends until the next tic
// (spec section 8, "Zero-width timeout"). Calling this from idle is a
// programming error.
func (k *Kernel) WaitForEvent(id TaskID, mask EventVector, waitForAll bool, timeout uint32) EventVector {
	if id == idleTaskID {
		fatalf(ErrIdleSuspend, "WaitForEvent")
	}

	k.mu.Lock()
	st := k.table.tasks[id]

	acquired := k.tryAcquireSemaphoresLocked(mask)
	st.postedEvents |= acquired
	st.waitMask = mask
	st.waitForAll = waitForAll
	if timeout == 0 {
		// A zero-tic timeout still suspends until the next tic boundary
		// (spec section 8, "Zero-width timeout"); the counter must count
		// down across at least one tic to produce the delay-timer event.
		st.delayCounter = 1
	} else {
		st.delayCounter = timeout
	}
	st.armed = mask&AbsoluteTimerBit != 0

	if wakeCondition(st) {
		// Immediately satisfied (e.g. a semaphore already had a token): the
		// caller never gives up the baton, so there is nothing to wait for.
		snapshot := st.postedEvents
		st.postedEvents = 0
		st.waitMask = 0
		k.mu.Unlock()
		return snapshot
	}

	k.table.removeFromDue(id, st.cfg.Priority)
	k.table.moveToSuspended(id)
	k.recomputeActiveLocked()
	k.mu.Unlock()

	return <-st.resumeCh
}

// SuspendTillTime is the convenience primitive of spec section 6: wait for
// the absolute-timer event only, with the next target set to the last
// target plus delta. A task that has never previously armed its absolute
// timer should pass its desired first target as delta relative to the
// current system time via the InitialAbsoluteTime task-config field
// instead; SuspendTillTime always advances from the task's last target.
func (k *Kernel) SuspendTillTime(id TaskID, delta uint32) EventVector {
	if id == idleTaskID {
		fatalf(ErrIdleSuspend, "SuspendTillTime")
	}
	k.mu.Lock()
	st := k.table.tasks[id]
	st.period = delta
	st.absoluteTarget = (st.absoluteTarget + delta) & k.timeMask
	k.mu.Unlock()
	return k.WaitForEvent(id, AbsoluteTimerBit, false, ^uint32(0))
}

// Delay is the convenience primitive of spec section 6: wait for the
// delay-timer event only.
func (k *Kernel) Delay(id TaskID, tics uint32) EventVector {
	if id == idleTaskID {
		fatalf(ErrIdleSuspend, "Delay")
	}
	return k.WaitForEvent(id, 0, false, tics)
}

// SetEvent is the task-called post primitive (spec section 6 "set event",
// section 4.3 "post-from-task"): identical to PostEventISR, plus the
// calling task voluntarily yields the baton if the recomputed active task
// is no longer itself.
func (k *Kernel) SetEvent(id TaskID, bits EventVector) EventVector {
	if id == idleTaskID {
		fatalf(ErrIdleSuspend, "SetEvent")
	}
	k.mu.Lock()
	st := k.table.tasks[id]
	k.postLocked(bits)
	k.recomputeActiveLocked()
	yielded := k.activeTask != id
	k.mu.Unlock()

	if !yielded {
		return 0
	}
	return <-st.resumeCh
}

// GetOverrunCount returns the task's overrun counter (spec section 6).
// clear, when true, resets the counter to zero after reading it.
func (k *Kernel) GetOverrunCount(id TaskID, clear bool) uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	st := k.table.tasks[id]
	n := st.overrun
	if clear {
		st.overrun = 0
	}
	return n
}

// TouchStack lets a task body record how deep into its declared stack
// arena it has reached, feeding GetStackReserve's high-water-mark probe
// (see stackframe.go); tasks that did not configure a StackArea need never
// call this.
func (k *Kernel) TouchStack(id TaskID, depth int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.table.tasks[id].stack.touch(depth)
}

// GetStackReserve returns the task's unused-stack high-water mark in bytes,
// or -1 if the task was configured without a StackArea (spec section 6).
func (k *Kernel) GetStackReserve(id TaskID) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.tasks[id].stack.reserve()
}

// EnterCriticalSection and LeaveCriticalSection bracket a brief
// non-blocking section during which the calling task's view of shared
// kernel state (and anything it protects by convention) will not be
// concurrently mutated by a Tic or PostEventISR call (spec section 4.5,
// "critical-section contract"). Nesting is not supported, matching the
// original.
func (k *Kernel) EnterCriticalSection() {
	k.mu.Lock()
}

// LeaveCriticalSection ends a critical section begun by
// EnterCriticalSection.
func (k *Kernel) LeaveCriticalSection() {
	k.mu.Unlock()
}
