package rtkernel

import (
	"fmt"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the kernel's structured logging surface, mirroring the shape of
// eventloop.Logger (eventloop/logging.go), with a category string on every
// call. The kernel itself logs only the rate-limited overrun warning, under
// the "tic" category. The default implementation (NewStumpyLogger) is backed by
// github.com/joeycumines/logiface + github.com/joeycumines/stumpy, exactly
// the pairing demonstrated in logiface-stumpy/example_test.go.
type Logger interface {
	Debugf(category string, format string, args ...any)
	Infof(category string, format string, args ...any)
	Warnf(category string, format string, args ...any)
	Errorf(category string, format string, args ...any)
}

// noopLogger is the zero-cost default, mirroring eventloop's NewNoOpLogger.
type noopLogger struct{}

func (noopLogger) Debugf(string, string, ...any) {}
func (noopLogger) Infof(string, string, ...any)  {}
func (noopLogger) Warnf(string, string, ...any)  {}
func (noopLogger) Errorf(string, string, ...any) {}

// stumpyLogger adapts a logiface.Logger[*stumpy.Event] to the Logger
// interface.
type stumpyLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewStumpyLogger constructs the default production Logger: structured,
// zero-allocation-steady-state JSON events written to stderr via stumpy.
func NewStumpyLogger() Logger {
	return &stumpyLogger{l: stumpy.L.New(stumpy.L.WithStumpy())}
}

func (s *stumpyLogger) Debugf(category, format string, args ...any) {
	s.l.Debug().Str(`category`, category).Log(sprintf(format, args...))
}

func (s *stumpyLogger) Infof(category, format string, args ...any) {
	s.l.Info().Str(`category`, category).Log(sprintf(format, args...))
}

func (s *stumpyLogger) Warnf(category, format string, args ...any) {
	s.l.Warning().Str(`category`, category).Log(sprintf(format, args...))
}

func (s *stumpyLogger) Errorf(category, format string, args ...any) {
	s.l.Err().Str(`category`, category).Log(sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
