// Package jsvm adapts evoke to the goja JavaScript engine: listener
// collections stored under a reserved property on a JS object, callbacks
// backed by JS functions, and stack capture backed by the interpreter's
// call stack. JS exceptions surface as ordinary errors, so the core's
// failure policies apply unchanged.
package jsvm

import (
	"strconv"

	"github.com/dop251/goja"

	"github.com/zoobzio/evoke"
)

// EventsProperty is the reserved property under which an object's listener
// collections live, keyed by event name.
const EventsProperty = "_events"

// maxSequenceLength bounds the listener count read from a
// script-controlled length property.
const maxSequenceLength = 1 << 16

// Accessor resolves listener entries from a JS object's reserved events
// property. It implements evoke.ListenerAccessor for targets that are
// *goja.Object values; any other target has no listeners.
type Accessor struct {
	vm *goja.Runtime
}

// NewAccessor creates an Accessor bound to a VM.
func NewAccessor(vm *goja.Runtime) *Accessor {
	return &Accessor{vm: vm}
}

// ListenerEntry resolves the entry for event on target. A JS function maps
// to a single evoke.Callback; an array-shaped value maps to a []any whose
// non-function elements the dispatcher skips.
func (a *Accessor) ListenerEntry(target any, event string) any {
	obj, ok := target.(*goja.Object)
	if !ok {
		return nil
	}

	eventsV := obj.Get(EventsProperty)
	if eventsV == nil || goja.IsUndefined(eventsV) || goja.IsNull(eventsV) {
		return nil
	}
	events := eventsV.ToObject(a.vm)

	entry := events.Get(event)
	if entry == nil || goja.IsUndefined(entry) || goja.IsNull(entry) {
		return nil
	}

	if fn, ok := goja.AssertFunction(entry); ok {
		return Wrap(a.vm, fn)
	}

	seq := entry.ToObject(a.vm)
	lengthV := seq.Get("length")
	if lengthV == nil || goja.IsUndefined(lengthV) {
		return nil
	}

	n := lengthV.ToInteger()
	if n <= 0 {
		return nil
	}
	if n > maxSequenceLength {
		n = maxSequenceLength
	}
	out := make([]any, 0, int(n))
	for i := 0; i < int(n); i++ {
		item := seq.Get(strconv.Itoa(i))
		if item == nil {
			out = append(out, nil)
			continue
		}
		if fn, ok := goja.AssertFunction(item); ok {
			out = append(out, Wrap(a.vm, fn))
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// Wrap adapts a JS function to an evoke.Callback. Arguments already
// holding goja.Value pass through unconverted; everything else goes
// through the VM's ToValue. A thrown JS exception is returned as the
// callback error.
func Wrap(vm *goja.Runtime, fn goja.Callable) evoke.Callback {
	return func(this any, args ...any) (any, error) {
		thisV, ok := this.(goja.Value)
		if !ok {
			thisV = vm.ToValue(this)
		}
		jsArgs := make([]goja.Value, len(args))
		for i, arg := range args {
			if v, ok := arg.(goja.Value); ok {
				jsArgs[i] = v
			} else {
				jsArgs[i] = vm.ToValue(arg)
			}
		}
		ret, err := fn(thisV, jsArgs...)
		if err != nil {
			return nil, err
		}
		if ret == nil || goja.IsUndefined(ret) {
			return nil, nil
		}
		return ret, nil
	}
}

// CaptureStack returns a StackCapturer backed by the VM's JS call stack.
// Install with evoke.WithStackCapturer so recorded causality traces show
// script frames instead of interpreter internals.
func CaptureStack(vm *goja.Runtime) evoke.StackCapturer {
	return func(limit int) []evoke.Frame {
		if limit < 1 {
			return nil
		}
		frames := vm.CaptureCallStack(limit, nil)
		out := make([]evoke.Frame, 0, len(frames))
		for _, f := range frames {
			pos := f.Position()
			out = append(out, evoke.Frame{
				Function: f.FuncName(),
				Source:   f.SrcName(),
				Line:     pos.Line,
				Column:   pos.Column,
			})
		}
		return out
	}
}
