package evoke

import (
	"bytes"
	"io"
	"log/slog"
)

// recordingReporter captures reported exceptions for assertions.
type recordingReporter struct {
	errs  []error
	async []bool
}

func (r *recordingReporter) ReportException(err error, async bool) {
	r.errs = append(r.errs, err)
	r.async = append(r.async, async)
}

// testRuntime bundles a Runtime with its captured diagnostics.
type testRuntime struct {
	rt       *Runtime
	reporter *recordingReporter
	out      *bytes.Buffer
	exits    []int
}

func newTestRuntime(opts ...Option) *testRuntime {
	tr := &testRuntime{
		reporter: &recordingReporter{},
		out:      &bytes.Buffer{},
	}
	base := []Option{
		WithReporter(tr.reporter),
		WithOutput(tr.out),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithExitFunc(func(code int) {
			tr.exits = append(tr.exits, code)
		}),
	}
	tr.rt = New(append(base, opts...)...)
	return tr
}

// testTarget is an emitting object holding listener collections under
// event names.
type testTarget struct {
	events map[string]any
}

// mapAccessor resolves listener entries from a testTarget's event map.
type mapAccessor struct{}

func (mapAccessor) ListenerEntry(target any, event string) any {
	tt, ok := target.(*testTarget)
	if !ok || tt.events == nil {
		return nil
	}
	return tt.events[event]
}
