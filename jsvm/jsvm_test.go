package jsvm

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dop251/goja"

	"github.com/zoobzio/evoke"
)

type recordingReporter struct {
	errs  []error
	async []bool
}

func (r *recordingReporter) ReportException(err error, async bool) {
	r.errs = append(r.errs, err)
	r.async = append(r.async, async)
}

func newVM(t *testing.T, script string) (*goja.Runtime, *goja.Object) {
	t.Helper()
	vm := goja.New()
	v, err := vm.RunString(script)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	return vm, v.ToObject(vm)
}

func newEmitter(vm *goja.Runtime, rep *recordingReporter) *evoke.Emitter {
	rt := evoke.New(
		evoke.WithReporter(rep),
		evoke.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		evoke.WithStackCapturer(CaptureStack(vm)),
	)
	return evoke.NewEmitter(rt, NewAccessor(vm))
}

func TestEmitSingleJSListener(t *testing.T) {
	vm, target := newVM(t, `
		var calls = [];
		var target = {
			_events: {
				connect: function (who) { calls.push([this, who]); }
			}
		};
		target;
	`)
	rep := &recordingReporter{}
	e := newEmitter(vm, rep)

	if !e.Emit(target, "connect", "peer") {
		t.Error("expected Emit to return true")
	}

	n, err := vm.RunString(`calls.length`)
	if err != nil {
		t.Fatal(err)
	}
	if n.ToInteger() != 1 {
		t.Errorf("expected 1 call, got %d", n.ToInteger())
	}

	this, err := vm.RunString(`calls[0][0] === target`)
	if err != nil {
		t.Fatal(err)
	}
	if !this.ToBoolean() {
		t.Error("expected the target object as receiver")
	}

	arg, err := vm.RunString(`calls[0][1]`)
	if err != nil {
		t.Fatal(err)
	}
	if arg.String() != "peer" {
		t.Errorf("expected argument conversion, got %q", arg.String())
	}
}

func TestEmitJSListenerArray(t *testing.T) {
	vm, target := newVM(t, `
		var order = [];
		var target = {
			_events: {
				data: [
					function () { order.push(1); },
					"not callable",
					function () { order.push(2); }
				]
			}
		};
		target;
	`)
	rep := &recordingReporter{}
	e := newEmitter(vm, rep)

	if !e.Emit(target, "data") {
		t.Error("expected Emit to return true")
	}

	got, err := vm.RunString(`order.join(",")`)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "1,2" {
		t.Errorf("expected in-order dispatch skipping non-functions, got %q", got.String())
	}
	if len(rep.errs) != 0 {
		t.Errorf("expected no failures, got %v", rep.errs)
	}
}

func TestEmitJSListenerThrows(t *testing.T) {
	vm, target := newVM(t, `
		var ran = [];
		var target = {
			_events: {
				data: [
					function () { ran.push(1); throw new Error("js boom"); },
					function () { ran.push(2); }
				]
			}
		};
		target;
	`)
	rep := &recordingReporter{}
	e := newEmitter(vm, rep)

	if e.Emit(target, "data") {
		t.Error("expected Emit to return false after a thrown exception")
	}
	if len(rep.errs) != 1 || !strings.Contains(rep.errs[0].Error(), "js boom") {
		t.Errorf("expected the JS exception reported, got %v", rep.errs)
	}

	got, err := vm.RunString(`ran.join(",")`)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "1" {
		t.Errorf("expected dispatch to abort after the throw, got %q", got.String())
	}
}

// TestEmitPathologicalLength verifies a script-controlled length cannot
// drive an unbounded allocation, and that listeners below the bound still
// dispatch.
func TestEmitPathologicalLength(t *testing.T) {
	vm, target := newVM(t, `
		var calls = 0;
		var target = {
			_events: {
				data: { "0": function () { calls++; }, length: 2147483648 }
			}
		};
		target;
	`)
	rep := &recordingReporter{}
	e := newEmitter(vm, rep)

	if !e.Emit(target, "data") {
		t.Error("expected Emit to return true")
	}
	got, err := vm.RunString(`calls`)
	if err != nil {
		t.Fatal(err)
	}
	if got.ToInteger() != 1 {
		t.Errorf("expected 1 call, got %d", got.ToInteger())
	}
}

func TestEmitNegativeLength(t *testing.T) {
	vm, target := newVM(t, `
		var target = {
			_events: {
				data: { "0": function () {}, length: -1 }
			}
		};
		target;
	`)
	rep := &recordingReporter{}
	e := newEmitter(vm, rep)

	if e.Emit(target, "data") {
		t.Error("expected Emit to return false for a negative length")
	}
}

func TestEmitNoEventsProperty(t *testing.T) {
	vm, target := newVM(t, `({})`)
	rep := &recordingReporter{}
	e := newEmitter(vm, rep)

	if e.Emit(target, "data") {
		t.Error("expected Emit to return false without an events property")
	}
}

func TestEmitNonObjectTarget(t *testing.T) {
	vm := goja.New()
	rep := &recordingReporter{}
	e := newEmitter(vm, rep)

	if e.Emit("not an object", "data") {
		t.Error("expected Emit to return false for a non-object target")
	}
}

// TestCaptureStackJSFrames verifies causality traces recorded during a JS
// call contain script frames.
func TestCaptureStackJSFrames(t *testing.T) {
	vm := goja.New()

	var frames []evoke.Frame
	capture := CaptureStack(vm)
	if err := vm.Set("snapshot", func() {
		frames = capture(10)
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := vm.RunScript("app.js", `
		function scheduleWork() { snapshot(); }
		scheduleWork();
	`); err != nil {
		t.Fatal(err)
	}

	if len(frames) == 0 {
		t.Fatal("expected captured JS frames")
	}
	var found bool
	for _, f := range frames {
		if f.Function == "scheduleWork" && f.Source == "app.js" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a scheduleWork frame from app.js, got %v", frames)
	}
}

// TestTrackedJSCallbackFailure runs a JS callback through the causality
// tracker and verifies the failure is fatal with the script trace printed.
func TestTrackedJSCallbackFailure(t *testing.T) {
	vm := goja.New()

	var out bytes.Buffer
	var exits []int
	rep := &recordingReporter{}
	rt := evoke.New(
		evoke.WithReporter(rep),
		evoke.WithOutput(&out),
		evoke.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		evoke.WithStackCapturer(CaptureStack(vm)),
		evoke.WithExitFunc(func(code int) { exits = append(exits, code) }),
	)

	// schedule mirrors a timer registration: the stack is recorded while
	// the scheduling script frame is still live.
	var cb evoke.Callback
	src := rt.NewSource(goja.Undefined(), func() evoke.Callback { return cb })
	if err := vm.Set("schedule", func(fn goja.Callable) {
		cb = Wrap(vm, fn)
		src.Active()
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := vm.RunScript("timer.js", `
		function setup() {
			schedule(function onTimeout() { throw new Error("deferred boom"); });
		}
		setup();
	`); err != nil {
		t.Fatal(err)
	}

	src.MakeCallback()

	if len(exits) != 1 || exits[0] != 1 {
		t.Fatalf("expected termination with status 1, got %v", exits)
	}
	if len(rep.errs) != 1 || !strings.Contains(rep.errs[0].Error(), "deferred boom") {
		t.Errorf("expected the JS exception reported, got %v", rep.errs)
	}
	if !strings.Contains(out.String(), "---------------------------") {
		t.Errorf("expected a causality trace block, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "timer.js") {
		t.Errorf("expected script frames in the trace, got:\n%s", out.String())
	}
}
