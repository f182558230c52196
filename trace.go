package rtkernel

// SchedulingEventKind classifies an entry on the kernel's trace channel
// (SPEC_FULL.md DOMAIN STACK: the go-longpoll-consumed monitoring surface).
type SchedulingEventKind int

const (
	EventTic SchedulingEventKind = iota
	EventWake
	EventPreempt
	EventOverrun
	EventMutexTransfer
	EventSemaphorePost
	EventRoundRobinRotate
)

func (k SchedulingEventKind) String() string {
	switch k {
	case EventTic:
		return "tic"
	case EventWake:
		return "wake"
	case EventPreempt:
		return "preempt"
	case EventOverrun:
		return "overrun"
	case EventMutexTransfer:
		return "mutex_transfer"
	case EventSemaphorePost:
		return "semaphore_post"
	case EventRoundRobinRotate:
		return "round_robin_rotate"
	default:
		return "unknown"
	}
}

// SchedulingEvent is one observation emitted onto the kernel's trace
// channel. It is purely diagnostic: nothing in the kernel ever blocks
// waiting for a SchedulingEvent to be consumed (the channel is dropped, not
// buffered-without-bound, the same non-blocking-to-core-logic guarantee the
// teacher's registry gives its own internal bookkeeping).
type SchedulingEvent struct {
	Kind      SchedulingEventKind
	SysTime   uint32
	Task      TaskID
	Other     TaskID // previously active task for EventPreempt; left zero for every other kind
	Bit       EventVector
	Overruns  uint32
}

// emit sends ev on the trace channel without blocking the caller; a full or
// nil channel simply drops the event, matching "the trace channel
// coalesces/batches observation of rapid-fire ISR posts for a monitor"
// (SPEC_FULL.md SUPPLEMENTED FEATURES).
func (k *Kernel) emit(ev SchedulingEvent) {
	if k.trace == nil {
		return
	}
	select {
	case k.trace <- ev:
	default:
	}
}

// Trace returns the kernel's scheduling-event channel, or nil if tracing was
// not enabled via WithTraceBuffer. Callers typically drain it in batches
// using longpoll.Channel (see cmd/rtkernel-shell for an example) so that a
// slow monitor can never apply backpressure to the scheduler.
func (k *Kernel) Trace() <-chan SchedulingEvent {
	return k.trace
}
