package rtkernel

import "sync/atomic"

// RunState is the kernel's own lifecycle state, distinct from any single
// task's state (which lives in the task table, see tasktable.go).
//
// State machine:
//
//	Awake (0)       -> Running (1)      [Run]
//	Running (1)     -> Terminating (2)  [Stop]
//	Terminating (2) -> Terminated (3)   [idle loop observes Stop]
type RunState uint32

const (
	// Awake indicates the kernel has been constructed but Run has not
	// been called; no task goroutines exist yet.
	Awake RunState = iota
	// Running indicates Run has installed initial wake conditions and
	// started every task goroutine plus idle.
	Running
	// Terminating indicates Stop has been called but the idle loop has not
	// yet observed it.
	Terminating
	// Terminated is the final state, entered when the idle loop observes
	// Stop and Run returns. Task goroutines are not stopped.
	Terminated
)

func (s RunState) String() string {
	switch s {
	case Awake:
		return "Awake"
	case Running:
		return "Running"
	case Terminating:
		return "Terminating"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// runStateMachine is a lock-free CAS state machine, mirroring the atomic
// state pattern used throughout this module's ambient stack.
type runStateMachine struct {
	v atomic.Uint32
}

func newRunStateMachine() *runStateMachine {
	s := &runStateMachine{}
	s.v.Store(uint32(Awake))
	return s
}

func (s *runStateMachine) Load() RunState {
	return RunState(s.v.Load())
}

func (s *runStateMachine) Store(state RunState) {
	s.v.Store(uint32(state))
}

func (s *runStateMachine) TryTransition(from, to RunState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
