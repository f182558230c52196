package rtkernel

// OverrunPolicy selects how the Event/Timer Engine reacts when a task's
// absolute-time target is reached while the task has not yet returned to
// suspended state (spec section 4.3, and the compile-time switch mandated
// by section 9's first Open Question).
type OverrunPolicy int

const (
	// AdvanceTarget advances the missed target by the task's period,
	// preventing systematic drift. This is the only policy compatible with
	// system-time wrap-around (spec section 9) and is the default.
	AdvanceTarget OverrunPolicy = iota

	// ImmediatelyDue leaves the target unchanged; since the task is
	// already due this performs no extra scheduling action beyond the
	// overrun count, and is retained only for compatibility with the
	// earlier source revision spec section 9 flags as incompatible with
	// 8-bit wrap. New configurations should prefer AdvanceTarget.
	ImmediatelyDue
)

// TimeWidth is the bit width of the free-running system-time counter (spec
// section 3). Wider counters delay wrap-around at the cost of the per-tic
// comparison being (marginally) more expensive in the Go model; both costs
// are irrelevant on a modern core, but the width still governs overrun
// detection near the wrap boundary exactly as on the original target.
type TimeWidth int

const (
	TimeWidth8  TimeWidth = 8
	TimeWidth16 TimeWidth = 16
	TimeWidth32 TimeWidth = 32
)

func (w TimeWidth) mask() uint32 {
	if w == TimeWidth32 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << uint(w)) - 1
}

// TaskFunc is the body of a configured task: it receives the kernel handle
// (for calling suspend primitives), its own TaskID, and the single
// configured parameter. It must run forever; returning is a fatal
// misconfiguration per spec section 7 ("returning from a task body reboots
// via the guard return address") - the Go analogue panics instead of
// silently returning control nowhere.
type TaskFunc func(k *Kernel, id TaskID, param uint16)

// TaskConfig is the immutable-after-init configuration of one task (spec
// section 3, "Task descriptor", config-written fields).
type TaskConfig struct {
	// Priority is the index into the due-list matrix; higher index means
	// higher priority.
	Priority int

	// Entry is the task body. Required.
	Entry TaskFunc

	// Param is the single argument passed to Entry.
	Param uint16

	// StackArea, if non-nil, is sentinel-filled at startup; GetStackReserve
	// reports the reserve recorded through TouchStack rather than scanning
	// it. See stackframe.go. Optional.
	StackArea []byte

	// InitialAbsoluteTime is the task's first absolute-time target.
	InitialAbsoluteTime uint32

	// InitialEventMask and WaitForAll describe the initial wake condition
	// installed before the task's first dispatch.
	InitialEventMask EventVector
	WaitForAll       bool

	// InitialTimeout is the task's initial delay-counter value (tics).
	InitialTimeout uint32

	// RoundRobinSlice is the max consecutive tics this task may remain
	// active within its class before yielding to a same-priority peer; 0
	// disables round-robin for this task (spec section 9 supplement: the
	// original configures this per task, not with one global switch).
	RoundRobinSlice uint16
}

// Config is the kernel-wide, compile-time-equivalent configuration (spec
// section 6, "Configuration parameters (all compile-time)").
type Config struct {
	// NumPriorityClasses sizes the due-list matrix's first dimension.
	NumPriorityClasses int

	// MaxTasksPerClass sizes the due-list matrix's second dimension.
	MaxTasksPerClass int

	// NumMutexEvents and NumSemaphoreEvents partition the 14 classifiable
	// event bits; the remainder are broadcast bits.
	NumMutexEvents     int
	NumSemaphoreEvents int

	// SemaphoreInitial supplies each semaphore counter's starting value;
	// its length must equal NumSemaphoreEvents (spec section 6: "installs
	// semaphore counter initial values supplied by the application").
	SemaphoreInitial []uint32

	// TimeWidth selects the system-time counter's bit width.
	TimeWidth TimeWidth

	// OverrunPolicy selects the compile-time overrun-handling switch.
	OverrunPolicy OverrunPolicy

	// IdleBody is called repeatedly whenever no task is due (spec section
	// 6, startup sequence). It must never call a suspend primitive.
	IdleBody func(k *Kernel)
}

func (c Config) validate(numTasks int) error {
	if c.NumPriorityClasses <= 0 {
		return WrapError("NumPriorityClasses must be positive", ErrInvalidConfig)
	}
	if c.MaxTasksPerClass <= 0 {
		return WrapError("MaxTasksPerClass must be positive", ErrInvalidConfig)
	}
	if len(c.SemaphoreInitial) != c.NumSemaphoreEvents {
		return WrapError("len(SemaphoreInitial) must equal NumSemaphoreEvents", ErrInvalidConfig)
	}
	switch c.TimeWidth {
	case TimeWidth8, TimeWidth16, TimeWidth32:
	default:
		return WrapError("TimeWidth must be 8, 16 or 32", ErrInvalidConfig)
	}
	if c.IdleBody == nil {
		return WrapError("IdleBody is required", ErrInvalidConfig)
	}
	if numTasks <= 0 {
		return WrapError("at least one task is required", ErrInvalidConfig)
	}
	return nil
}
