// Package rtkernel implements a small, statically configured,
// priority-based preemptive scheduler in the shape of RTuinOS: a fixed set
// of application tasks plus an implicit idle task, each scheduled by
// priority class with optional round-robin time-slicing within a class, and
// synchronized exclusively through a 16-bit per-task event vector carrying
// broadcast, mutex and counting-semaphore events plus the absolute-timer
// and delay-timer events.
//
// Where the original target a single hardware thread with a raw-assembly
// context switch, this module represents each task as a dedicated
// goroutine and realizes the context switch as a single-slot "baton"
// channel: a task runs only while it holds the baton, and gives it up by
// calling a suspend primitive (WaitForEvent, SuspendTillTime, Delay,
// SetEvent). See SPEC_FULL.md's "GO-NATIVE CONTEXT-SWITCH MODEL" for the
// full rationale, including the one documented simplification: Go cannot
// forcibly interrupt a task's code that is actively executing (not
// blocked), so such a task only yields the next time it calls back into
// the kernel.
package rtkernel
