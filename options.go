package rtkernel

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// kernelOptions holds the ambient (non spec-mandated) construction options,
// mirroring the functional-options pattern used throughout the teacher's
// eventloop package (eventloop/options.go).
type kernelOptions struct {
	logger         Logger
	diagnosticRate map[time.Duration]int
	traceBuffer    int
}

// Option configures a Kernel at construction time.
type Option interface {
	apply(*kernelOptions)
}

type optionFunc func(*kernelOptions)

func (f optionFunc) apply(o *kernelOptions) { f(o) }

// WithLogger installs a structured logger; the default is a no-op logger
// (see logging.go).
func WithLogger(l Logger) Option {
	return optionFunc(func(o *kernelOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithTraceBuffer sets the capacity of the scheduling-event trace channel
// returned by (*Kernel).Trace. A capacity of 0 disables tracing (the
// channel is nil and nothing is ever sent, at zero cost). Default is 0.
func WithTraceBuffer(capacity int) Option {
	return optionFunc(func(o *kernelOptions) {
		if capacity > 0 {
			o.traceBuffer = capacity
		}
	})
}

// WithDiagnosticRate overrides the sliding-window rate used to throttle
// overrun diagnostic log lines (see newOverrunLimiter). Default
// is 5 log lines per second.
func WithDiagnosticRate(window time.Duration, maxEvents int) Option {
	return optionFunc(func(o *kernelOptions) {
		if window > 0 && maxEvents > 0 {
			o.diagnosticRate = map[time.Duration]int{window: maxEvents}
		}
	})
}

func resolveOptions(opts []Option) *kernelOptions {
	cfg := &kernelOptions{
		logger:         noopLogger{},
		diagnosticRate: map[time.Duration]int{time.Second: 5},
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(cfg)
	}
	return cfg
}

// newOverrunLimiter builds the catrate.Limiter gating overrun
// diagnostic logging (SPEC_FULL.md, DOMAIN STACK): at most a handful of log
// lines per window regardless of how many tasks are overrunning, so a
// misconfigured periodic task cannot flood the log at tic frequency. The
// overrun counter itself (spec sections 4.3, 7) is never gated by this -
// only the diagnostic log line is.
func newOverrunLimiter(cfg *kernelOptions) *catrate.Limiter {
	return catrate.NewLimiter(cfg.diagnosticRate)
}
