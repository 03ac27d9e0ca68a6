package evoke

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	defaultRuntime *Runtime
	defaultOnce    sync.Once
)

// Runtime owns the process-wide causality state: the single "currently
// active" Source slot, the capture and reporting configuration, and the
// microtask drain trigger. All Sources created from a Runtime share its
// configuration.
type Runtime struct {
	active        *Source
	frameLimit    int
	ancestorLimit int
	capture       StackCapturer
	reporter      Reporter
	out           io.Writer
	log           *slog.Logger
	exit          func(code int)
	uncaught      func(err error) bool
	tracer        trace.Tracer

	drainReceiver any
	drainResolve  func() Callback
	drainCallback Callback
}

// New creates a Runtime with optional configuration.
// If no options are provided, sensible defaults are used
// (FrameLimit=10, AncestorLimit=4, Go stack capture, stderr output).
func New(opts ...Option) *Runtime {
	r := &Runtime{
		frameLimit:    DefaultFrameLimit,
		ancestorLimit: DefaultAncestorLimit,
		capture:       CaptureStack,
		out:           os.Stderr,
		log:           slog.Default(),
		exit:          os.Exit,
		tracer:        otel.Tracer("evoke"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = &consoleReporter{w: r.out, log: r.log}
	}
	return r
}

// defaultInstance returns the default Runtime, creating it if necessary.
func defaultInstance() *Runtime {
	defaultOnce.Do(func() {
		defaultOptMu.Lock()
		opts := defaultOptions
		defaultOptMu.Unlock()
		defaultRuntime = New(opts...)
	})
	return defaultRuntime
}

// Default returns the process-wide default Runtime.
func Default() *Runtime {
	return defaultInstance()
}

// ActiveSource returns the Source currently executing a tracked callback,
// or nil when no activation is in flight.
func (r *Runtime) ActiveSource() *Source {
	return r.active
}

// SetMicrotaskDrain installs the trigger that runs pending follow-up work
// after every successful top-level callback. The resolver is consulted
// lazily on first use and its result cached; installing a new resolver
// discards the cache. The receiver is the well-known object the drain
// callback is invoked against with zero arguments.
//
// A resolver that yields nil is a structural error: the surrounding
// runtime promised a drain callback and failed to provide one.
func (r *Runtime) SetMicrotaskDrain(receiver any, resolve func() Callback) {
	r.drainReceiver = receiver
	r.drainResolve = resolve
	r.drainCallback = nil
}

// ReportException forwards an uncaught failure to the configured Reporter.
// It does not terminate the process; fatality is decided by the caller
// (see Source.MakeCallback).
func (r *Runtime) ReportException(err error, async bool) {
	r.reporter.ReportException(err, async)
}

// fatal reports an uncaught failure from a deferred callback, prints the
// causality chain for src, and terminates the process unless an uncaught
// handler claims the error.
func (r *Runtime) fatal(err error, src *Source) {
	r.reporter.ReportException(err, true)
	if src != nil {
		r.log.Error("uncaught exception in deferred callback",
			"error", err,
			"source", src.id,
		)
		src.PrintChain(r.out, r.ancestorLimit)
	}
	if r.uncaught != nil && r.uncaught(err) {
		return
	}
	r.exit(1)
}
