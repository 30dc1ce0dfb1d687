package trace

import (
	"context"
	"sync"
	"time"
)

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const (
	bundleKey bundleKeyType = "observe-trace"
)

// contextBundle holds both tracer and active span to reduce context allocations.
type contextBundle struct {
	tracer *Tracer
	active *ActiveSpan
}

// Status is the terminal status of a span.
type Status string

const (
	// StatusUnset is the zero status. Spans that crash before their outcome
	// is known keep it.
	StatusUnset Status = ""
	// StatusOK marks a span whose invocation completed without error.
	StatusOK Status = "ok"
	// StatusError marks a span whose invocation failed.
	StatusError Status = "internal_error"
)

// Span represents a single unit of work in a distributed trace.
// A Span with Transaction=true is a root of its trace tree: either a brand
// new trace or a linked root that shares an existing trace ID.
//
// Spans are NOT thread-safe - do not modify from multiple goroutines.
// Use ActiveSpan for concurrent mutation of in-flight spans.
//
//nolint:govet // Field alignment optimized for JSON serialization order
type Span struct {
	Tags        map[string]string `json:"tags,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time,omitempty"`
	Duration    time.Duration     `json:"duration"`
	TraceID     string            `json:"trace_id"`
	SpanID      string            `json:"span_id"`
	ParentID    string            `json:"parent_id,omitempty"`
	Name        string            `json:"name"`
	Status      Status            `json:"status,omitempty"`
	Transaction bool              `json:"transaction,omitempty"`
}

// ActiveSpan wraps a Span with thread-safe tag, status, and lifecycle
// operations. Safe for concurrent use by multiple goroutines.
type ActiveSpan struct {
	span   *Span
	tracer *Tracer
	mu     sync.Mutex // Protects span from concurrent mutation.
}

// SetTag adds a key-value pair to the span.
// No-op if the span is already finished.
func (a *ActiveSpan) SetTag(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't modify finished spans.
	if !a.span.EndTime.IsZero() {
		return
	}

	if a.span.Tags == nil {
		a.span.Tags = make(map[string]string)
	}
	a.span.Tags[key] = value
}

// GetTag retrieves a tag value by key.
func (a *ActiveSpan) GetTag(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.span.Tags == nil {
		return "", false
	}
	value, ok := a.span.Tags[key]
	return value, ok
}

// SetStatus records the span's terminal status.
// No-op if the span is already finished.
func (a *ActiveSpan) SetStatus(status Status) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.span.EndTime.IsZero() {
		return
	}
	a.span.Status = status
}

// Finish completes the span and hands it to the tracer's completion handlers.
// Safe to call multiple times - subsequent calls are no-ops.
func (a *ActiveSpan) Finish() {
	a.mu.Lock()

	// Prevent double-finishing.
	if !a.span.EndTime.IsZero() {
		a.mu.Unlock()
		return
	}

	a.span.EndTime = a.tracer.clock.Now()
	a.span.Duration = a.span.EndTime.Sub(a.span.StartTime)
	completed := a.snapshotLocked()
	a.mu.Unlock()

	// Handlers run outside the span lock.
	a.tracer.spanCompleted(completed)
}

// Finished reports whether Finish has been called.
func (a *ActiveSpan) Finished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.span.EndTime.IsZero()
}

// TraceID returns the trace ID of this span.
func (a *ActiveSpan) TraceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.TraceID
}

// SpanID returns the span ID of this span.
func (a *ActiveSpan) SpanID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.SpanID
}

// Snapshot returns a deep copy of the underlying span.
func (a *ActiveSpan) Snapshot() Span {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *ActiveSpan) snapshotLocked() Span {
	span := *a.span
	if a.span.Tags != nil {
		span.Tags = make(map[string]string, len(a.span.Tags))
		for k, v := range a.span.Tags {
			span.Tags[k] = v
		}
	}
	return span
}

// Context creates a new context with this span as the current span.
// The returned context can be used to start child spans.
func (a *ActiveSpan) Context(parent context.Context) context.Context {
	bundle := &contextBundle{tracer: a.tracer, active: a}
	return context.WithValue(parent, bundleKey, bundle)
}

// SpanFromContext extracts the current span from a context.
// Returns nil if no span is present.
func SpanFromContext(ctx context.Context) *ActiveSpan {
	if ctx == nil {
		return nil
	}

	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.active
	}

	return nil
}
