package evoke

import (
	"io"
	"log/slog"
	"sync"
)

const (
	// DefaultFrameLimit is the maximum number of frames recorded per
	// stack capture.
	DefaultFrameLimit = 10

	// DefaultAncestorLimit is the maximum number of ancestor traces
	// printed beyond a source's own trace.
	DefaultAncestorLimit = 4
)

var (
	defaultOptions []Option
	defaultOptMu   sync.Mutex
)

// Option configures a Runtime.
type Option func(*Runtime)

// Configure sets options for the default Runtime instance.
// Must be called before the default instance is first used.
// Subsequent calls have no effect once the default instance is created.
func Configure(opts ...Option) {
	defaultOptMu.Lock()
	defaultOptions = opts
	defaultOptMu.Unlock()
}

// WithFrameLimit bounds the number of frames recorded per stack capture.
// Default is 10. Values below 1 are ignored.
func WithFrameLimit(limit int) Option {
	return func(r *Runtime) {
		if limit > 0 {
			r.frameLimit = limit
		}
	}
}

// WithAncestorLimit bounds how many ancestor traces are printed when a
// causality chain is reported. Default is 4. Values below 0 are ignored.
// The bound guarantees chain printing terminates even on unexpectedly
// long chains.
func WithAncestorLimit(limit int) Option {
	return func(r *Runtime) {
		if limit >= 0 {
			r.ancestorLimit = limit
		}
	}
}

// WithStackCapturer replaces the stack capture backend. The default
// captures the Go call stack; embedders of a script engine supply the
// engine's capture instead (see package jsvm).
func WithStackCapturer(capture StackCapturer) Option {
	return func(r *Runtime) {
		if capture != nil {
			r.capture = capture
		}
	}
}

// WithReporter replaces the uncaught-failure reporter. The default writes
// to the configured output and logs a structured record.
func WithReporter(reporter Reporter) Option {
	return func(r *Runtime) {
		if reporter != nil {
			r.reporter = reporter
		}
	}
}

// WithOutput sets the writer causality chains and default reports are
// printed to. Default is os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) {
		if w != nil {
			r.out = w
		}
	}
}

// WithLogger sets the structured logger used for fatal diagnostics.
// Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *Runtime) {
		if log != nil {
			r.log = log
		}
	}
}

// WithExitFunc replaces the process-termination function invoked after a
// fatal report. Default is os.Exit. Intended for tests and embedders that
// must flush state before dying; the replacement should not return control
// to the failed callback's scheduler.
func WithExitFunc(exit func(code int)) Option {
	return func(r *Runtime) {
		if exit != nil {
			r.exit = exit
		}
	}
}

// WithUncaughtHandler installs a last-chance hook consulted after an
// uncaught deferred-callback failure has been reported. Returning true
// claims the error and the process keeps running; returning false falls
// through to termination. Default is nil: always fatal.
func WithUncaughtHandler(handler func(err error) bool) Option {
	return func(r *Runtime) {
		r.uncaught = handler
	}
}
