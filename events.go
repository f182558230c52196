package rtkernel

// EventVector is the 16-bit per-task event word described in spec section 3.
// Bit 14 is always the absolute-timer event, bit 15 is always the
// delay-timer event; the remaining 14 bits are partitioned at configuration
// time (fixed thereafter) into broadcast, mutex and semaphore classes.
type EventVector uint16

const (
	// AbsoluteTimerBit is posted when a task's absolute-time target is
	// reached while the task is suspended waiting on it.
	AbsoluteTimerBit EventVector = 1 << 14

	// DelayTimerBit is posted when a task's delay counter reaches zero.
	DelayTimerBit EventVector = 1 << 15

	// timerBits is the mask of the two fixed timer bits, never part of the
	// configurable broadcast/mutex/semaphore partition.
	timerBits = AbsoluteTimerBit | DelayTimerBit

	// maxClassifiableBits is the number of bits available for the
	// broadcast/mutex/semaphore partition (bits 0..13).
	maxClassifiableBits = 14
)

// eventClass identifies which of the three semantic classes an event bit
// belongs to; the absolute/delay timer bits are handled separately by the
// engine and never appear here.
type eventClass int

const (
	classBroadcast eventClass = iota
	classMutex
	classSemaphore
)

// eventLayout is the invariant-at-runtime partition of the 14 classifiable
// bits, computed once from Config at kernel construction (spec section 3:
// "The partition ... is determined at configuration and is invariant
// thereafter").
type eventLayout struct {
	numBroadcast int
	numMutex     int
	numSemaphore int
}

func newEventLayout(numMutex, numSemaphore int) (eventLayout, error) {
	if numMutex < 0 || numSemaphore < 0 {
		return eventLayout{}, WrapError("event layout", ErrInvalidConfig)
	}
	numBroadcast := maxClassifiableBits - numMutex - numSemaphore
	if numBroadcast < 0 {
		return eventLayout{}, WrapError("event layout: mutex+semaphore events exceed 14 bits", ErrInvalidConfig)
	}
	return eventLayout{
		numBroadcast: numBroadcast,
		numMutex:     numMutex,
		numSemaphore: numSemaphore,
	}, nil
}

// BroadcastBit returns the event bit for general-purpose broadcast event i
// (0-based, including any bits an application reassigns to ISR events).
func (l eventLayout) BroadcastBit(i int) EventVector {
	if i < 0 || i >= l.numBroadcast {
		fatalf(ErrInvalidConfig, "broadcast event index %d out of range [0,%d)", i, l.numBroadcast)
	}
	return 1 << uint(i)
}

// MutexBit returns the event bit for mutex i.
func (l eventLayout) MutexBit(i int) EventVector {
	if i < 0 || i >= l.numMutex {
		fatalf(ErrInvalidConfig, "mutex index %d out of range [0,%d)", i, l.numMutex)
	}
	return 1 << uint(l.numBroadcast+i)
}

// SemaphoreBit returns the event bit for semaphore i.
func (l eventLayout) SemaphoreBit(i int) EventVector {
	if i < 0 || i >= l.numSemaphore {
		fatalf(ErrInvalidConfig, "semaphore index %d out of range [0,%d)", i, l.numSemaphore)
	}
	return 1 << uint(l.numBroadcast+l.numMutex+i)
}

// classify returns the semantic class and within-class index of a single
// set bit. It is undefined (and panics) to call this with more than one bit
// set, or with a timer bit set.
func (l eventLayout) classify(bit EventVector) (eventClass, int) {
	switch {
	case int(bit) < (1 << uint(l.numBroadcast)):
		for i := 0; i < l.numBroadcast; i++ {
			if l.BroadcastBit(i) == bit {
				return classBroadcast, i
			}
		}
	case int(bit) < (1 << uint(l.numBroadcast+l.numMutex)):
		for i := 0; i < l.numMutex; i++ {
			if l.MutexBit(i) == bit {
				return classMutex, i
			}
		}
	default:
		for i := 0; i < l.numSemaphore; i++ {
			if l.SemaphoreBit(i) == bit {
				return classSemaphore, i
			}
		}
	}
	fatalf(ErrInvalidConfig, "event bit %#04x is not a single classifiable bit", uint16(bit))
	panic("unreachable")
}

// broadcastMask, mutexMask and semaphoreMask return the mask of every bit
// belonging to the respective class.
func (l eventLayout) broadcastMask() EventVector {
	return EventVector((1 << uint(l.numBroadcast)) - 1)
}

func (l eventLayout) mutexMask() EventVector {
	return EventVector(((1 << uint(l.numMutex)) - 1) << uint(l.numBroadcast))
}

func (l eventLayout) semaphoreMask() EventVector {
	return EventVector(((1 << uint(l.numSemaphore)) - 1) << uint(l.numBroadcast+l.numMutex))
}

// satisfied reports whether posted events satisfy a wait condition, per
// spec section 4.3 step 2c.
func satisfied(posted, mask EventVector, waitForAll bool) bool {
	hit := posted & mask
	if waitForAll {
		return mask != 0 && hit == mask
	}
	return hit != 0
}

// wakeCondition reports whether a suspended task should be woken: its
// configured wait mask is satisfied, or its timeout has elapsed (spec
// section 6's runtime API table: "suspend until (...) OR delay-timer bit
// posted"). The delay-timer bit always independently causes wake regardless
// of the wait-for-all flag; it is the per-call timeout, not an ordinary
// member of the event set being awaited.
func wakeCondition(st *taskState) bool {
	if satisfied(st.postedEvents, st.waitMask, st.waitForAll) {
		return true
	}
	return st.postedEvents&DelayTimerBit != 0
}
