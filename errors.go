package rtkernel

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrAlreadyRunning is returned when Run is called on a kernel that has
	// already been started.
	ErrAlreadyRunning = errors.New("rtkernel: already running")

	// ErrTerminated is returned by Run when the kernel has already been
	// stopped.
	ErrTerminated = errors.New("rtkernel: kernel has terminated")

	// ErrNotRunning reports a kernel that is not running. No kernel
	// operation returns it: Tic and PostEventISR return without effect when
	// the kernel is not running.
	ErrNotRunning = errors.New("rtkernel: kernel is not running")

	// ErrInvalidConfig is returned by New when the supplied Config cannot
	// produce a consistent task table.
	ErrInvalidConfig = errors.New("rtkernel: invalid configuration")

	// ErrDueListFull is the fatal configuration error raised (as a panic,
	// per spec's thin error model - see fatalf below) when a
	// task would overflow its priority class's due-list capacity.
	ErrDueListFull = errors.New("rtkernel: priority class due-list is full")

	// ErrMutexReentrance names a task waiting on a mutex event bit it
	// already owns. The kernel does not raise it: ownership of a mutex bit
	// is not tracked once the bit has been delivered to its task.
	ErrMutexReentrance = errors.New("rtkernel: mutex reentrance")

	// ErrIdleSuspend is raised if the idle body attempts to call a suspend
	// primitive, which spec section 5 forbids.
	ErrIdleSuspend = errors.New("rtkernel: idle task may not call a suspend primitive")
)

// fatalf panics with a wrapped error. The kernel's error model (spec
// section 7) treats misconfiguration and protocol violations as
// programming errors that must crash deterministically rather than be
// reported through a return value; callers at the task/ISR boundary are
// never expected to recover from these.
func fatalf(base error, format string, args ...any) {
	panic(fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...)))
}

// WrapError wraps an error with a message, preserving the cause chain for
// errors.Is/errors.As.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
