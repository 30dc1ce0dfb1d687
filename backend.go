package observe

import (
	"context"

	"github.com/sharpencrag/observe-sentry/trace"
)

// StatusOK is the terminal status recorded on spans whose invocation
// completed without error.
const StatusOK = "ok"

// Span is the minimal span surface the telemetry core mutates. Any
// monitoring backend whose spans can do this is substitutable.
type Span interface {
	TraceID() string
	SpanID() string
	SetTag(key, value string)
	GetTag(key string) (string, bool)
	SetStatus(status string)
	Finish()
}

// Backend is the minimal monitoring-client surface the telemetry core
// depends on. The Start methods return a context carrying the new span as
// the current span; the core hands that context to the invocation so
// nested work nests under the right parent.
type Backend interface {
	// CurrentSpan returns the context's active span, or nil.
	CurrentSpan(ctx context.Context) Span

	// StartTransaction begins an independent root transaction.
	StartTransaction(ctx context.Context, name string) (context.Context, Span)

	// StartLinkedRoot begins a fresh root transaction correlated to the
	// current span's trace.
	StartLinkedRoot(ctx context.Context, name string) (context.Context, Span)

	// StartChild begins a child of the current span.
	StartChild(ctx context.Context, name string) (context.Context, Span)

	// CaptureException reports an application error, correlated to the
	// current span when one is active.
	CaptureException(ctx context.Context, err error)
}

// traceBackend adapts a *trace.Tracer to the Backend interface and stamps
// process identity onto new transactions.
type traceBackend struct {
	tracer     *trace.Tracer
	user       string
	sampleRate float64
}

// NewTraceBackend wraps tracer as a Backend. user, when non-empty, is
// recorded as a "user" tag on every transaction the backend starts.
// sampleRate is carried for the uplink that exports collected spans; the
// backend itself records everything.
func NewTraceBackend(tracer *trace.Tracer, user string, sampleRate float64) Backend {
	return &traceBackend{tracer: tracer, user: user, sampleRate: sampleRate}
}

func (b *traceBackend) CurrentSpan(ctx context.Context) Span {
	active := trace.SpanFromContext(ctx)
	if active == nil {
		return nil
	}
	return spanHandle{active}
}

func (b *traceBackend) StartTransaction(ctx context.Context, name string) (context.Context, Span) {
	nctx, active := b.tracer.StartTransaction(ctx, name)
	b.stamp(active)
	return nctx, spanHandle{active}
}

func (b *traceBackend) StartLinkedRoot(ctx context.Context, name string) (context.Context, Span) {
	nctx, active := b.tracer.StartLinkedRoot(ctx, name)
	b.stamp(active)
	return nctx, spanHandle{active}
}

func (b *traceBackend) StartChild(ctx context.Context, name string) (context.Context, Span) {
	nctx, active := b.tracer.StartChild(ctx, name)
	return nctx, spanHandle{active}
}

func (b *traceBackend) CaptureException(ctx context.Context, err error) {
	b.tracer.CaptureException(ctx, err)
}

func (b *traceBackend) stamp(active *trace.ActiveSpan) {
	if b.user != "" {
		active.SetTag("user", b.user)
	}
}

// spanHandle narrows *trace.ActiveSpan to the Span interface.
type spanHandle struct {
	*trace.ActiveSpan
}

func (h spanHandle) SetStatus(status string) {
	h.ActiveSpan.SetStatus(trace.Status(status))
}
