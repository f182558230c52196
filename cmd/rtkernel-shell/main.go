// Command rtkernel-shell is an interactive debug console for rtkernel: an
// operator can single-step the system-time tic, post ISR events by hand, and
// inspect the due-list matrix and suspended list, without writing a driver
// program of their own. It boots a small built-in demonstration
// configuration (a periodic priority-0 task and a priority-1 task waiting on
// broadcast event bit 0) since rtkernel
// itself has no other notion of "the" running system to attach to.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	prompt "github.com/joeycumines/go-prompt"

	rtkernel "github.com/joeycumines/go-rtkernel"
)

func demoConfig() (rtkernel.Config, []rtkernel.TaskConfig) {
	cfg := rtkernel.Config{
		NumPriorityClasses: 2,
		MaxTasksPerClass:   4,
		NumMutexEvents:     1,
		NumSemaphoreEvents: 1,
		SemaphoreInitial:   []uint32{0},
		TimeWidth:          rtkernel.TimeWidth16,
		OverrunPolicy:      rtkernel.AdvanceTarget,
		IdleBody:           func(*rtkernel.Kernel) {},
	}

	tasks := []rtkernel.TaskConfig{
		{
			Priority:        0,
			InitialTimeout:  1,
			RoundRobinSlice: 5,
			Entry: func(k *rtkernel.Kernel, id rtkernel.TaskID, _ uint16) {
				for {
					k.SuspendTillTime(id, 10)
				}
			},
		},
		{
			Priority:         1,
			InitialEventMask: 1, // broadcast bit 0
			Entry: func(k *rtkernel.Kernel, id rtkernel.TaskID, _ uint16) {
				for {
					k.WaitForEvent(id, 1, false, ^uint32(0))
				}
			},
		},
	}

	return cfg, tasks
}

func main() {
	cfg, tasks := demoConfig()
	k, err := rtkernel.New(cfg, tasks, rtkernel.WithTraceBuffer(256))
	if err != nil {
		fmt.Fprintln(os.Stderr, "rtkernel-shell: failed to build kernel:", err)
		os.Exit(1)
	}

	go func() {
		if err := k.Run(); err != nil {
			fmt.Fprintln(os.Stderr, "rtkernel-shell: kernel run:", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchTrace(ctx, k)

	sh := &shell{k: k}
	p := prompt.New(
		sh.execute,
		prompt.WithPrefix("rtkernel> "),
		prompt.WithTitle("rtkernel-shell"),
		prompt.WithHistory([]string{"tic", "snapshot"}),
	)
	p.Run()
}

// watchTrace drains the kernel's trace channel in batches via longpoll, so
// bursts of scheduling events (e.g. a tic that wakes several tasks) are
// received and printed together, one line per event.
func watchTrace(ctx context.Context, k *rtkernel.Kernel) {
	_ = k.DrainTraceBatches(ctx, rtkernel.TraceBatchConfig{MaxSize: 32}, func(batch []rtkernel.SchedulingEvent) error {
		for _, ev := range batch {
			fmt.Printf("\n[trace] t=%d %s task=%d\n", ev.SysTime, ev.Kind, ev.Task)
		}
		return nil
	})
}

type shell struct {
	k *rtkernel.Kernel
}

func (s *shell) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "tic":
		n := 1
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil {
				n = v
			}
		}
		for i := 0; i < n; i++ {
			s.k.Tic()
		}

	case "post":
		if len(fields) < 2 {
			fmt.Println("usage: post <bits>  (decimal, or 0x-prefixed hex)")
			return
		}
		bits, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			fmt.Println("bad bits:", err)
			return
		}
		s.k.PostEventISR(rtkernel.EventVector(bits))

	case "snapshot", "state":
		printSnapshot(s.k.Snapshot())

	case "idle":
		fmt.Println("idle iterations:", s.k.IdleIterations())

	case "stop":
		s.k.Stop()
		fmt.Println("stop requested")

	case "help":
		fmt.Println("commands: tic [n] | post <bits> | snapshot | idle | stop | quit")

	case "quit", "exit":
		s.k.Stop()
		os.Exit(0)

	default:
		fmt.Println("unknown command, try: help")
	}
}

func printSnapshot(snap rtkernel.KernelSnapshot) {
	fmt.Printf("sysTime=%d active=%d\n", snap.SysTime, snap.ActiveTask)
	for class := len(snap.Due) - 1; class >= 0; class-- {
		fmt.Printf("due[class=%d]: %v\n", class, snap.Due[class])
	}
	fmt.Printf("suspended: %v\n", snap.Suspended)
	for _, ts := range snap.Tasks {
		fmt.Printf("  task %d: priority=%d due=%v waitMask=%#x posted=%#x overrun=%d\n",
			ts.ID, ts.Priority, ts.Due, ts.WaitMask, ts.Posted, ts.Overrun)
	}
}
