// Package evoke provides synchronous multi-listener event dispatch and
// asynchronous causality tracking for embedded callback runtimes.
//
// At its core, evoke offers two cooperating pieces: an Emitter that invokes
// the listeners registered for a named event on a target object, and a
// Runtime/Source pair that threads a logical call stack across deferred
// callback boundaries. When a deferred callback fails uncaught, the failure
// is reported together with the chain of asynchronous operations that led
// to it, not just the immediate native stack.
//
// Execution model: single-threaded and cooperative. Exactly one callback
// body runs at a time, and at most one Source is active at any instant.
// Runtime, Source, and Emitter are not safe for concurrent use from
// multiple goroutines.
//
// Quick example:
//
//	rt := evoke.New()
//	src := rt.NewSource(op, func() evoke.Callback { return op.callback })
//
//	src.Active()           // operation scheduled: capture stack, link parent
//	// ... later, the event loop runs it:
//	src.MakeCallback(args...)
//	src.Inactive()
//
// See https://github.com/zoobzio/evoke for full documentation.
package evoke

// Callback is a callable invoked with a receiver and arguments.
// A non-nil error marks the invocation as failed; how the failure is
// handled depends on the caller (see Emitter.Emit and Source.MakeCallback).
// Panics inside a Callback are recovered and treated as failures.
type Callback func(this any, args ...any) (any, error)

// Frame is a single captured stack frame.
type Frame struct {
	// Function is the name of the executing function, empty if unknown.
	Function string

	// Source is the file or script the frame originates from.
	Source string

	// Line is the 1-based line number within Source.
	Line int

	// Column is the 1-based column number, 0 if the capture backend
	// does not track columns.
	Column int
}

// ListenerAccessor resolves the listener entry registered for an event on a
// target object. The collection itself is owned by the surrounding value
// system; evoke only reads through this abstraction.
//
// The returned entry may be:
//   - nil: no listeners registered
//   - Callback: a single listener
//   - []Callback: an ordered listener sequence
//   - []any: an ordered sequence where non-Callback elements are skipped
//
// Any other shape is treated as no listeners.
type ListenerAccessor interface {
	ListenerEntry(target any, event string) any
}

// StackCapturer produces an ordered snapshot of the current call stack,
// innermost frame first, with at most limit frames.
type StackCapturer func(limit int) []Frame

// Reporter consumes uncaught failures. The async flag distinguishes
// failures escaping a deferred callback (fatal by default) from failures
// raised by a synchronously dispatched listener (non-fatal).
type Reporter interface {
	ReportException(err error, async bool)
}
