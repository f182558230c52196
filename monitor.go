package rtkernel

import (
	"context"
	"time"

	"github.com/joeycumines/go-longpoll"
)

// TraceBatchConfig configures DrainTraceBatches' use of longpoll.Channel. A
// zero value selects longpoll's own documented defaults (MaxSize 16, MinSize
// 4, PartialTimeout 50ms).
type TraceBatchConfig struct {
	MaxSize        int
	MinSize        int
	PartialTimeout time.Duration
}

// DrainTraceBatches is a monitor-side convenience wrapping the kernel's trace
// channel (see Trace) in github.com/joeycumines/go-longpoll's batched-receive
// helper: it blocks until at least MinSize events have arrived (or
// PartialTimeout elapses with at least one), then calls handler once with the
// batch, repeating until ctx is cancelled or the trace channel is closed.
//
// This exists because a monitor that calls handler once per SchedulingEvent
// pays a function-call and (if it renders output) a terminal-flush per tic at
// full tic rate; batching amortizes that cost without ever requiring the
// kernel goroutine itself to block on a slow consumer (Trace's channel is
// always drained non-blockingly by emit, see trace.go).
func (k *Kernel) DrainTraceBatches(ctx context.Context, cfg TraceBatchConfig, handler func([]SchedulingEvent) error) error {
	ch := k.Trace()
	if ch == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	lpCfg := &longpoll.ChannelConfig{
		MaxSize:        cfg.MaxSize,
		MinSize:        cfg.MinSize,
		PartialTimeout: cfg.PartialTimeout,
	}

	for {
		var batch []SchedulingEvent
		err := longpoll.Channel(ctx, lpCfg, ch, func(ev SchedulingEvent) error {
			batch = append(batch, ev)
			return nil
		})
		if len(batch) > 0 {
			if herr := handler(batch); herr != nil {
				return herr
			}
		}
		if err != nil {
			return err
		}
	}
}
