package evoke

import "runtime"

// CaptureStack is the default StackCapturer. It snapshots the Go call
// stack, innermost frame first, skipping its own frame and the runtime
// plumbing above it. Column information is not available from the Go
// runtime and is reported as 0.
func CaptureStack(limit int) []Frame {
	if limit < 1 {
		return nil
	}

	pcs := make([]uintptr, limit)
	// Skip runtime.Callers and CaptureStack itself.
	n := runtime.Callers(2, pcs)
	if n == 0 {
		return nil
	}

	out := make([]Frame, 0, n)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		out = append(out, Frame{
			Function: fr.Function,
			Source:   fr.File,
			Line:     fr.Line,
		})
		// Inlined calls can expand to more frames than PCs.
		if !more || len(out) == limit {
			break
		}
	}
	return out
}
