// Package events provides named, re-entrant units of instrumented work.
//
// An Event is a definition: a name, an elevated flag, and an Exited signal.
// Each Run of an event creates a fresh Data record carrying the call's
// args, keyword fields, tags, and outcome. Process-wide callbacks observe
// every invocation's lifecycle (about to run, completed, crashed); the
// per-event Exited signal fires after every invocation regardless of
// outcome, which lets instrumentation arm per-invocation teardown.
//
// Events are safe for concurrent and recursive use: every invocation owns
// its Data, and nested invocations inherit context from the enclosing call.
package events

import (
	"context"
	"fmt"
)

// Status identifies a lifecycle phase of an event invocation.
type Status int

const (
	// AboutToRun fires before the wrapped function starts.
	AboutToRun Status = iota
	// Completed fires after the wrapped function returns nil.
	Completed
	// Crashed fires after the wrapped function returns an error or panics.
	Crashed
)

// String returns the phase name.
func (s Status) String() string {
	switch s {
	case AboutToRun:
		return "about-to-run"
	case Completed:
		return "completed"
	case Crashed:
		return "crashed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Event is a named, re-entrant-capable unit of instrumented work.
// A single Event definition may have many invocations in flight at once,
// across goroutines or recursively on one call stack.
type Event struct {
	name     string
	elevated bool
	exited   *Signal
}

// Option configures an Event definition.
type Option func(*Event)

// Elevated marks the event as a top-level operation: instrumentation
// should start a fresh root transaction for it even when invoked under an
// active span, keeping only trace-level correlation to the caller.
func Elevated() Option {
	return func(e *Event) { e.elevated = true }
}

// New creates an event definition.
func New(name string, opts ...Option) *Event {
	e := &Event{name: name, exited: NewSignal()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the event's name.
func (e *Event) Name() string { return e.name }

// Elevated reports whether the event requests root-transaction semantics.
func (e *Event) Elevated() bool { return e.elevated }

// Exited returns the signal fired after every invocation of this event.
// Handlers receive the invocation's Data and must identity-check it when
// they only care about one specific invocation.
func (e *Event) Exited() *Signal { return e.exited }

// RunOption attaches call data to a single invocation.
type RunOption func(*Data)

// Args records the positional arguments of the wrapped call.
func Args(args ...any) RunOption {
	return func(d *Data) { d.Args = args }
}

// Keywords records the named arguments of the wrapped call.
func Keywords(kwargs map[string]any) RunOption {
	return func(d *Data) { d.KWArgs = kwargs }
}

// Run executes fn as one invocation of the event.
//
// Lifecycle: a fresh Data is built, AboutToRun callbacks fire (and may
// replace the invocation context), fn runs with the resulting context,
// Completed or Crashed callbacks fire depending on fn's outcome, and the
// event's Exited signal always fires last. fn's error is returned
// unchanged; a panic in fn is re-raised after the Crashed and Exited
// notifications.
func (e *Event) Run(ctx context.Context, fn func(context.Context) error, opts ...RunOption) error {
	if ctx == nil {
		ctx = context.Background()
	}

	d := &Data{Event: e, Name: e.name}
	for _, opt := range opts {
		opt(d)
	}
	d.ctx = context.WithValue(ctx, dataKey, d)

	emitGlobal(AboutToRun, d)

	defer func() {
		if r := recover(); r != nil {
			// Observers see the crash and exit before the panic resumes.
			d.markCrashed(fmt.Errorf("panic: %v", r))
			emitGlobal(Crashed, d)
			e.exited.Emit(d)
			panic(r)
		}
	}()

	err := fn(d.Context())
	if err != nil {
		d.markCrashed(err)
		emitGlobal(Crashed, d)
	} else {
		emitGlobal(Completed, d)
	}
	e.exited.Emit(d)
	return err
}
