package evoke

// Emitter dispatches named events to the listeners registered on a target
// object, resolved through a ListenerAccessor. Dispatch is synchronous and
// re-entrant: a listener may emit further events, and each emit iterates
// its own point-in-time snapshot of the listener sequence.
type Emitter struct {
	rt        *Runtime
	listeners ListenerAccessor
}

// NewEmitter creates an Emitter that resolves listener entries through the
// given accessor. A nil runtime selects the default instance.
func NewEmitter(rt *Runtime, listeners ListenerAccessor) *Emitter {
	if rt == nil {
		rt = defaultInstance()
	}
	return &Emitter{rt: rt, listeners: listeners}
}

// Emit invokes the listeners registered for event on target, in order,
// with target as receiver.
//
// A multi-listener sequence is snapshotted before iteration, so listener
// mutation of the underlying collection cannot affect the current
// dispatch. Non-callable sequence elements are skipped without error.
//
// The first listener failure is reported through the runtime's exception
// path, aborts the remaining listeners, and is not re-raised: Emit
// returns false and the process keeps running. Emit returns true only if
// at least one listener ran and none failed.
func (e *Emitter) Emit(target any, event string, args ...any) bool {
	entry := e.listeners.ListenerEntry(target, event)
	if entry == nil {
		return false
	}

	switch v := entry.(type) {
	case Callback:
		// Optimized one-listener case.
		if v == nil {
			return false
		}
		if _, err := call(v, target, args); err != nil {
			e.rt.ReportException(err, false)
			return false
		}
		return true

	case []Callback:
		snapshot := make([]Callback, len(v))
		copy(snapshot, v)

		invoked := false
		for _, cb := range snapshot {
			if cb == nil {
				continue
			}
			if _, err := call(cb, target, args); err != nil {
				e.rt.ReportException(err, false)
				return false
			}
			invoked = true
		}
		return invoked

	case []any:
		snapshot := make([]any, len(v))
		copy(snapshot, v)

		invoked := false
		for _, item := range snapshot {
			cb, ok := item.(Callback)
			if !ok || cb == nil {
				continue
			}
			if _, err := call(cb, target, args); err != nil {
				e.rt.ReportException(err, false)
				return false
			}
			invoked = true
		}
		return invoked

	default:
		return false
	}
}
