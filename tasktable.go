package rtkernel

// TaskID identifies a configured task by its index into the task table.
// idleTaskID is the sentinel used internally for the implicit idle body,
// which (per spec's GLOSSARY) is not a task-table entry.
type TaskID int

const idleTaskID TaskID = -1

// taskState is the kernel-owned runtime half of a task descriptor (spec
// section 3, "Writer: kernel / ISR" rows). The immutable half lives in
// TaskConfig.
type taskState struct {
	cfg TaskConfig

	// resumeCh is this task's baton channel; see dispatch.go and
	// SPEC_FULL.md's "GO-NATIVE CONTEXT-SWITCH MODEL".
	resumeCh chan EventVector

	stack *stackImage

	postedEvents EventVector
	waitMask     EventVector
	waitForAll   bool

	delayCounter   uint32
	absoluteTarget uint32
	period         uint32 // last delta passed to SuspendTillTime; 0 if unused
	armed          bool   // absoluteTarget is the operative wake/overrun condition

	rrBudget uint32 // tics remaining in the current round-robin slice

	overrun uint32
}

// taskTable owns the due-list matrix, the suspended list and the task
// descriptor array (spec section 4.2). Every method here must be called
// with the kernel mutex held; this type does no locking of its own,
// exactly mirroring the teacher's *Locked-suffixed ChunkedIngress methods
// (eventloop/ingress.go) which rely on the caller already holding the
// relevant mutex.
type taskTable struct {
	tasks []*taskState // index == TaskID
	due   [][]TaskID   // due[class] is a FIFO of TaskIDs, class 0 = lowest priority
	susp  []TaskID      // insertion-ordered suspended list
}

func newTaskTable(tasks []*taskState, numClasses int) *taskTable {
	due := make([][]TaskID, numClasses)
	return &taskTable{tasks: tasks, due: due}
}

// moveToDue appends task at the end of class's due-list (spec section 4.2).
func (t *taskTable) moveToDue(id TaskID, class int, maxPerClass int) {
	if len(t.due[class]) >= maxPerClass {
		fatalf(ErrDueListFull, "class %d task %d", class, id)
	}
	t.due[class] = append(t.due[class], id)
}

// moveToSuspended appends task at the end of the suspended list.
func (t *taskTable) moveToSuspended(id TaskID) {
	t.susp = append(t.susp, id)
}

// removeFromSuspended removes task, shifting successors left to preserve
// insertion order.
func (t *taskTable) removeFromSuspended(id TaskID) bool {
	for i, v := range t.susp {
		if v == id {
			copy(t.susp[i:], t.susp[i+1:])
			t.susp = t.susp[:len(t.susp)-1]
			return true
		}
	}
	return false
}

// removeFromDue removes task from class's due-list, shifting successors
// left.
func (t *taskTable) removeFromDue(id TaskID, class int) bool {
	list := t.due[class]
	for i, v := range list {
		if v == id {
			copy(list[i:], list[i+1:])
			t.due[class] = list[:len(list)-1]
			return true
		}
	}
	return false
}

// rotate moves the front of class's due-list to the back (round-robin),
// a no-op if the class has at most one member.
func (t *taskTable) rotate(class int) {
	list := t.due[class]
	if len(list) < 2 {
		return
	}
	front := list[0]
	copy(list, list[1:])
	list[len(list)-1] = front
}

// highestNonEmpty scans priority classes from highest index to lowest and
// returns the index of the first non-empty due-list, or -1 if every class
// is empty (spec section 4.4).
func (t *taskTable) highestNonEmpty() int {
	for c := len(t.due) - 1; c >= 0; c-- {
		if len(t.due[c]) > 0 {
			return c
		}
	}
	return -1
}
