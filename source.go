package evoke

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Source is the causality record for one deferred operation: a timer, an
// I/O completion, a microtask. It captures a stack snapshot each time the
// operation is scheduled and links to whichever Source was active at that
// moment, forming the ancestor chain printed when the operation's callback
// later fails uncaught.
//
// The parent link is non-owning. A parent keeps a registry of the children
// referring to it and proactively clears their links when it is destroyed,
// so a chain walk never dereferences a reclaimed Source.
type Source struct {
	rt       *Runtime
	id       uuid.UUID
	receiver any
	resolve  func() Callback

	trace     []Frame
	parent    *Source
	children  map[*Source]struct{}
	refs      int
	destroyed bool
}

// NewSource creates a Source owned by this Runtime. The receiver is the
// object the callback is invoked against; resolve returns the currently
// bound callback and is consulted on every invocation, so the owner may
// rebind it between activations.
func (r *Runtime) NewSource(receiver any, resolve func() Callback) *Source {
	return &Source{
		rt:       r,
		id:       uuid.New(),
		receiver: receiver,
		resolve:  resolve,
	}
}

// ID returns the source's diagnostic identity.
func (s *Source) ID() uuid.UUID { return s.id }

// Parent returns the currently linked ancestor, or nil if none was active
// at capture time or the ancestor has since been destroyed.
func (s *Source) Parent() *Source { return s.parent }

// Trace returns the captured frames, empty if no capture is held.
// Returns a defensive copy; modifications don't affect the source.
func (s *Source) Trace() []Frame {
	out := make([]Frame, len(s.trace))
	copy(out, s.trace)
	return out
}

// RecordStack captures the current stack, replacing any previous capture
// wholesale, and links this source to the currently active one. Called
// whenever the owning operation becomes eligible to run.
func (s *Source) RecordStack() {
	s.ClearStack()

	trace := s.rt.capture(s.rt.frameLimit)
	if len(trace) > s.rt.frameLimit {
		trace = trace[:s.rt.frameLimit]
	}
	s.trace = trace

	if p := s.rt.active; p != nil && p != s {
		s.parent = p
		if p.children == nil {
			p.children = make(map[*Source]struct{})
		}
		p.children[s] = struct{}{}
	}
}

// ClearStack releases the captured trace and the parent link,
// unregistering from the parent's liveness registry. Idempotent.
func (s *Source) ClearStack() {
	s.trace = nil
	s.releaseParent()
}

func (s *Source) releaseParent() {
	if s.parent != nil {
		delete(s.parent.children, s)
		s.parent = nil
	}
}

// Active brackets the scheduled state of the owning operation: it takes a
// liveness reference and records the current stack. Pair with Inactive.
func (s *Source) Active() {
	s.Ref()
	s.RecordStack()
}

// Inactive releases the capture, the parent link, and the liveness
// reference taken by Active.
func (s *Source) Inactive() {
	s.ClearStack()
	s.Unref()
}

// Ref increments the liveness count. The owning object uses the count to
// decide when the source may be reclaimed.
func (s *Source) Ref() { s.refs++ }

// Unref decrements the liveness count, never below zero.
func (s *Source) Unref() {
	if s.refs > 0 {
		s.refs--
	}
}

// Refs returns the current liveness count.
func (s *Source) Refs() int { return s.refs }

// Destroy clears the parent link of every child still referring to this
// source, then performs Inactive-equivalent cleanup. A destroyed source
// must never run a callback. Idempotent.
func (s *Source) Destroy() {
	if s.destroyed {
		return
	}
	for c := range s.children {
		c.parent = nil
	}
	s.children = nil
	s.ClearStack()
	s.destroyed = true
}

// PrintChain writes this source's captured frames to w, then recurses into
// its ancestors up to maxAncestors levels. Termination is guaranteed by
// the depth bound; a cleared parent link ends the walk early.
func (s *Source) PrintChain(w io.Writer, maxAncestors int) {
	s.printChain(w, maxAncestors, 0)
}

func (s *Source) printChain(w io.Writer, maxAncestors, depth int) {
	if len(s.trace) == 0 {
		return
	}

	fmt.Fprintln(w, "    ---------------------------")
	for _, f := range s.trace {
		fmt.Fprintf(w, "    %s\n", f)
	}

	if s.parent != nil && depth < maxAncestors {
		s.parent.printChain(w, maxAncestors, depth+1)
	}
}

// String formats a frame in "at func (source:line:column)" form.
func (f Frame) String() string {
	name := f.Function
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("at %s (%s:%d:%d)", name, f.Source, f.Line, f.Column)
}
