package rtkernel

import (
	"sync"
	"sync/atomic"

	catrate "github.com/joeycumines/go-catrate"
)

// Kernel is a configured, running (or not-yet-started) instance of the
// priority-based preemptive scheduler. One Kernel owns exactly one task
// table, one due-list matrix, one suspended list and one system-time
// counter, mirroring spec section 9's "bundle them into a single kernel
// instance guarded by the critical-section primitive" strategy for the
// "global mutable kernel state" re-architecture note.
//
// Zero value is not usable; construct with New.
type Kernel struct {
	_ [0]func()

	cfg    Config
	layout eventLayout

	state *runStateMachine

	mu          sync.Mutex
	table       *taskTable
	semCounters []uint32
	sysTime     uint32
	timeMask    uint32
	activeTask  TaskID

	idleResumeCh   chan EventVector
	idleIterations atomic.Uint64

	logger  Logger
	limiter *catrate.Limiter
	trace   chan SchedulingEvent

	runDone chan struct{}
}

// New validates cfg and tasks, builds every task's initial stack image and
// descriptor, and returns a Kernel ready for Run. This corresponds to spec
// section 6's "application's configuration routine" plus the kernel half of
// the startup sequence up to (but not including) "transfers control to
// idle", which instead happens inside Run.
func New(cfg Config, tasks []TaskConfig, opts ...Option) (*Kernel, error) {
	if err := cfg.validate(len(tasks)); err != nil {
		return nil, err
	}
	layout, err := newEventLayout(cfg.NumMutexEvents, cfg.NumSemaphoreEvents)
	if err != nil {
		return nil, err
	}
	for i, t := range tasks {
		if t.Entry == nil {
			return nil, WrapError("task has no Entry", ErrInvalidConfig)
		}
		if t.Priority < 0 || t.Priority >= cfg.NumPriorityClasses {
			return nil, WrapError("task priority out of range", ErrInvalidConfig)
		}
		_ = i
	}

	options := resolveOptions(opts)

	states := make([]*taskState, len(tasks))
	for i, t := range tasks {
		states[i] = &taskState{
			cfg:            t,
			resumeCh:       make(chan EventVector, 1),
			stack:          buildStackImage(t.StackArea),
			waitMask:       t.InitialEventMask,
			waitForAll:     t.WaitForAll,
			delayCounter:   t.InitialTimeout,
			absoluteTarget: t.InitialAbsoluteTime,
			armed:          t.InitialEventMask&AbsoluteTimerBit != 0,
			rrBudget:       uint32(t.RoundRobinSlice),
		}
	}

	semCounters := make([]uint32, cfg.NumSemaphoreEvents)
	copy(semCounters, cfg.SemaphoreInitial)

	table := newTaskTable(states, cfg.NumPriorityClasses)
	for id := range states {
		table.moveToSuspended(TaskID(id))
	}

	k := &Kernel{
		cfg:          cfg,
		layout:       layout,
		state:        newRunStateMachine(),
		table:        table,
		semCounters:  semCounters,
		activeTask:   idleTaskID,
		idleResumeCh: make(chan EventVector, 1),
		logger:       options.logger,
		limiter:      newOverrunLimiter(options),
		runDone:      make(chan struct{}),
	}
	k.timeMask = cfg.TimeWidth.mask()
	if options.traceBuffer > 0 {
		k.trace = make(chan SchedulingEvent, options.traceBuffer)
	}
	return k, nil
}

// Run starts every configured task's goroutine (each immediately blocking on
// its own resumeCh, since every task begins suspended per spec section 6)
// and the idle body, then blocks until ctx-independent shutdown via Stop.
// Run must be called at most once.
func (k *Kernel) Run() error {
	if !k.state.TryTransition(Awake, Running) {
		switch k.state.Load() {
		case Terminated, Terminating:
			return ErrTerminated
		default:
			return ErrAlreadyRunning
		}
	}

	for id := range k.table.tasks {
		go k.runTask(TaskID(id))
	}

	// k.activeTask is already idleTaskID (set in New); recomputeActiveLocked
	// only sends a baton when the pick differs from that, so idle simply
	// starts its loop natively if no task's initial wait condition is
	// already satisfied, with no spurious send left undrained.
	k.mu.Lock()
	k.recomputeActiveLocked()
	k.mu.Unlock()

	k.runIdle()
	return nil
}

// runTask is the goroutine body backing one configured task: wait for the
// baton, then (a single time) run the configured entry function. The entry
// function is expected to never return (spec section 7: "returning from a
// task body reboots via the guard return address"); its Go analogue panics,
// using the task's own goroutine as the blast radius rather than the whole
// process, which is as close as a supervised goroutine can get to a
// deterministic, isolated reset.
func (k *Kernel) runTask(id TaskID) {
	st := k.table.tasks[id]
	<-st.resumeCh
	st.cfg.Entry(k, id, st.cfg.Param)
	fatalf(ErrInvalidConfig, "task %d entry function returned", id)
}

// runIdle is the idle body loop (spec section 6: "transfers control to
// idle, which repeatedly calls the application-supplied idle body"). It
// never calls a suspend primitive, matching spec section 5's restriction.
// Since Go cannot forcibly interrupt idle's Go code either, idle cooperates
// with preemption the same way a task body would at its own checkpoints:
// before each iteration it checks whether it is still the active task, and
// if not, blocks until the baton is handed back to it (SPEC_FULL.md
// GO-NATIVE CONTEXT-SWITCH MODEL).
func (k *Kernel) runIdle() {
	for {
		k.mu.Lock()
		if k.state.Load() != Running {
			k.state.TryTransition(Terminating, Terminated)
			k.mu.Unlock()
			close(k.runDone)
			return
		}
		stillActive := k.activeTask == idleTaskID
		k.mu.Unlock()

		if !stillActive {
			<-k.idleResumeCh
			continue
		}

		k.idleIterations.Add(1)
		k.cfg.IdleBody(k)
	}
}

// IdleIterations returns the number of times the idle body has run, the Go
// analogue of the original's idle-loop load counter (SPEC_FULL.md
// SUPPLEMENTED FEATURES).
func (k *Kernel) IdleIterations() uint64 {
	return k.idleIterations.Load()
}

// Stop transitions the kernel toward termination. It does not forcibly
// interrupt a currently active task or a currently active idle body
// (consistent with the documented preemption limitation, SPEC_FULL.md
// GO-NATIVE CONTEXT-SWITCH MODEL): if idle is presently active it observes
// termination on its next loop iteration; if idle is presently blocked
// waiting for the baton, it observes termination only once some task
// voluntarily suspends and the scheduler hands the baton back to idle.
func (k *Kernel) Stop() {
	for {
		cur := k.state.Load()
		if cur == Terminating || cur == Terminated {
			return
		}
		if k.state.TryTransition(cur, Terminating) {
			return
		}
	}
}

// Done returns a channel closed once the idle goroutine has observed
// termination and returned.
func (k *Kernel) Done() <-chan struct{} {
	return k.runDone
}

// handOffLocked delivers the baton to newActive, the Go realization of
// spec section 4.5's context-switch: send on the new active task's resumeCh
// (buffered size 1, so this never blocks the caller holding k.mu). val is
// the injected posted-events snapshot, or 0 if the task was never
// suspended (spec 4.5 "no injection occurs"). Must be called with k.mu held.
func (k *Kernel) handOffLocked(newActive TaskID, val EventVector) {
	var ch chan EventVector
	if newActive == idleTaskID {
		ch = k.idleResumeCh
	} else {
		ch = k.table.tasks[newActive].resumeCh
	}
	select {
	case ch <- val:
	default:
		if newActive == idleTaskID {
			// Idle may still hold an unconsumed baton from an earlier
			// activation it never blocked for; runIdle re-checks
			// k.activeTask after every receive, so one pending baton is
			// enough and this one is dropped.
			return
		}
		// Buffer of 1 is already full: the task has a pending baton it has
		// not yet consumed. Treat as a fatal programming error rather than
		// silently losing the hand-off.
		fatalf(ErrInvalidConfig, "baton already pending for task %d", newActive)
	}
}
