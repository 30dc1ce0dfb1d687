// Package trace is the in-process monitoring client for observe-sentry.
//
// It provides the minimal backend surface the telemetry core depends on:
// transaction and span creation, a context-scoped current span, tag and
// status mutation, exception capture, and completion handler fan-out.
//
// Core Components:
//   - Tracer: starts transactions, linked roots, and child spans.
//   - Span: a timed node in a trace tree; Transaction marks roots.
//   - ActiveSpan: thread-safe handle for in-flight spans.
//   - Collector: buffers completed spans for export.
//
// Basic Usage:
//
//	tracer := trace.New()
//	defer tracer.Close()
//
//	ctx, span := tracer.StartTransaction(ctx, "load-asset")
//	span.SetTag("asset.id", "123")
//
//	// The returned context carries the span; children attach to it.
//	ctx, child := tracer.StartChild(ctx, "read-file")
//	child.Finish()
//	span.SetStatus(trace.StatusOK)
//	span.Finish()
//
// Trace Topology:
//
// StartTransaction always begins an independent trace. StartChild nests
// under the current span. StartLinkedRoot begins a fresh top-level
// transaction that keeps the current trace ID and records the current span
// as its predecessor - used for operations that should stand on their own
// without losing correlation to the trace that spawned them.
//
// Context Propagation:
//
// The current span travels in the context.Context returned by the Start
// calls. Nesting contexts is the span stack: unrelated goroutines with
// unrelated contexts never observe each other's spans.
//
// Thread Safety:
//
// Tracer and Collector are safe for concurrent use. ActiveSpan operations
// are safe for concurrent use; the raw Span struct is not.
package trace
