package evoke

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MakeCallback runs the source's currently bound callback as a top-level
// deferred invocation. It is the only sanctioned way to run a deferred
// callback.
//
// The callback is resolved lazily; if none is bound the call is a no-op
// returning nil. For the duration of the call this source occupies the
// runtime's single active slot, so stack captures performed underneath it
// link back here. An uncaught failure is reported with the full ancestor
// chain and terminates the process (unless an uncaught handler claims it).
// After a successful call, pending microtasks are drained through the same
// protocol and the last invocation's result is returned.
//
// Calling MakeCallback while another source is active, or on a destroyed
// source, is a programming-model violation and panics.
func (s *Source) MakeCallback(args ...any) any {
	if s.destroyed {
		panic("evoke: MakeCallback on destroyed source")
	}

	if s.resolve == nil {
		return nil
	}
	cb := s.resolve()
	if cb == nil {
		return nil
	}

	ret, err := s.invoke(cb, s.receiver, args)
	if err != nil {
		s.rt.fatal(err, s)
		return nil
	}

	// After every callback, run pending follow-up work.
	if drained, dret, derr := s.drainMicrotasks(); drained {
		if derr != nil {
			s.rt.fatal(derr, s)
			return nil
		}
		return dret
	}

	return ret
}

// invoke is the activation choke point: it enforces the single active
// slot, saves and restores it around the call, and observes failure.
func (s *Source) invoke(cb Callback, receiver any, args []any) (ret any, err error) {
	if s.rt.active != nil {
		panic("evoke: re-entrant activation: another source is already active")
	}
	s.rt.active = s
	defer func() { s.rt.active = nil }()

	_, span := s.rt.tracer.Start(context.Background(), "evoke.callback",
		trace.WithAttributes(
			attribute.String("evoke.source.id", s.id.String()),
			attribute.Bool("evoke.async", true),
		))
	defer span.End()

	ret, err = call(cb, receiver, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return ret, err
}

// drainMicrotasks triggers the pending-microtask callback, resolving it
// once and reusing it. Returns false if no drain trigger is installed.
func (s *Source) drainMicrotasks() (drained bool, ret any, err error) {
	r := s.rt
	if r.drainResolve == nil {
		return false, nil, nil
	}
	if r.drainCallback == nil {
		r.drainCallback = r.drainResolve()
		if r.drainCallback == nil {
			panic("evoke: microtask drain callback unresolved")
		}
	}
	ret, err = s.invoke(r.drainCallback, r.drainReceiver, nil)
	return true, ret, err
}

// call invokes a callback and observes failure, converting panics into
// errors. Shared by tracked activation and synchronous dispatch.
func call(cb Callback, receiver any, args []any) (ret any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if recErr, ok := rec.(error); ok {
				err = fmt.Errorf("callback panic: %w", recErr)
			} else {
				err = fmt.Errorf("callback panic: %v", rec)
			}
		}
	}()
	return cb(receiver, args...)
}
