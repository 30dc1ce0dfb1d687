package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// SpanHandler is called when a span completes.
type SpanHandler func(span Span)

// CapturedError describes an exception reported while a trace was active.
// TraceID and SpanID are empty when no span was current at capture time.
type CapturedError struct {
	Err     error
	TraceID string
	SpanID  string
	Time    time.Time
}

// ErrorHandler is called when an exception is captured.
type ErrorHandler func(captured CapturedError)

type spanHandlerEntry struct {
	handler SpanHandler
	id      uint64
	async   bool
}

type errorHandlerEntry struct {
	handler ErrorHandler
	id      uint64
}

// Tracer manages span lifecycle, exception capture, and handler fan-out.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for readability over memory
type Tracer struct {
	spanHandlers  []spanHandlerEntry
	errorHandlers []errorHandlerEntry
	panicHook     func(handlerID uint64, r interface{})
	workers       *workerPool
	traceIDPool   *IDPool
	spanIDPool    *IDPool
	clock         clockz.Clock
	handlersLock  sync.RWMutex
	idPoolOnce    sync.Once
	nextID        atomic.Uint64
	droppedTasks  atomic.Uint64
}

// New creates a new tracer.
// Uses the real clock for production behavior.
func New() *Tracer {
	return &Tracer{clock: clockz.RealClock}
}

// WithClock returns a new tracer with the specified clock.
// Enables clock injection for deterministic testing.
func (*Tracer) WithClock(clock clockz.Clock) *Tracer {
	return &Tracer{clock: clock}
}

// ensureIDPools initializes ID pools if not already created.
func (t *Tracer) ensureIDPools() {
	t.idPoolOnce.Do(func() {
		// Pool size based on number of CPUs for optimal contention balance.
		poolSize := runtime.NumCPU() * 100

		t.traceIDPool = NewIDPool(poolSize, func() string {
			bytes := make([]byte, 16)
			if _, err := rand.Read(bytes); err != nil {
				// Fallback to time-based ID if crypto/rand fails.
				return hex.EncodeToString([]byte(t.clock.Now().Format(time.RFC3339Nano)))
			}
			return hex.EncodeToString(bytes)
		})

		t.spanIDPool = NewIDPool(poolSize, func() string {
			bytes := make([]byte, 8)
			if _, err := rand.Read(bytes); err != nil {
				// Fallback to time-based ID if crypto/rand fails.
				return hex.EncodeToString([]byte(t.clock.Now().Format("15:04:05.000000")))
			}
			return hex.EncodeToString(bytes)
		})
	})
}

// StartTransaction begins a new root transaction with a fresh trace ID.
// Any span already current on ctx is ignored: the new transaction is the
// top of an independent trace tree.
func (t *Tracer) StartTransaction(ctx context.Context, name string) (context.Context, *ActiveSpan) {
	if ctx == nil {
		ctx = context.Background()
	}

	t.ensureIDPools()
	span := &Span{
		TraceID:     t.traceIDPool.Get(),
		SpanID:      t.spanIDPool.Get(),
		Name:        name,
		StartTime:   t.clock.Now(),
		Transaction: true,
	}
	return t.enter(ctx, span)
}

// StartLinkedRoot begins a new root transaction that shares the current
// span's trace ID and records the current span as its predecessor. The
// result is a fresh top-level transaction, not a child span, but it stays
// correlated to the enclosing trace.
//
// Falls back to StartTransaction when no span is current.
func (t *Tracer) StartLinkedRoot(ctx context.Context, name string) (context.Context, *ActiveSpan) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return t.StartTransaction(ctx, name)
	}

	t.ensureIDPools()
	span := &Span{
		TraceID:     parent.TraceID(),
		SpanID:      t.spanIDPool.Get(),
		ParentID:    parent.SpanID(),
		Name:        name,
		StartTime:   t.clock.Now(),
		Transaction: true,
	}
	return t.enter(ctx, span)
}

// StartChild begins a child span of the current span, inheriting its trace ID.
// Falls back to StartTransaction when no span is current.
func (t *Tracer) StartChild(ctx context.Context, name string) (context.Context, *ActiveSpan) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return t.StartTransaction(ctx, name)
	}

	t.ensureIDPools()
	span := &Span{
		TraceID:   parent.TraceID(),
		SpanID:    t.spanIDPool.Get(),
		ParentID:  parent.SpanID(),
		Name:      name,
		StartTime: t.clock.Now(),
	}
	return t.enter(ctx, span)
}

// enter wraps span in an ActiveSpan and makes it current on a new context.
func (t *Tracer) enter(ctx context.Context, span *Span) (context.Context, *ActiveSpan) {
	active := &ActiveSpan{span: span, tracer: t}
	bundle := &contextBundle{tracer: t, active: active}
	return context.WithValue(ctx, bundleKey, bundle), active
}

// CaptureException reports an exception to the registered error handlers,
// correlated to the current span if one is present. Tolerates a missing
// span: the capture still fans out with empty trace and span IDs.
func (t *Tracer) CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}

	captured := CapturedError{Err: err, Time: t.clock.Now()}
	if current := SpanFromContext(ctx); current != nil {
		captured.TraceID = current.TraceID()
		captured.SpanID = current.SpanID()
	}

	t.handlersLock.RLock()
	handlers := make([]errorHandlerEntry, len(t.errorHandlers))
	copy(handlers, t.errorHandlers)
	t.handlersLock.RUnlock()

	for _, h := range handlers {
		t.safeCaptureCall(h, captured)
	}
}

// OnSpanComplete registers a synchronous handler called when spans complete.
func (t *Tracer) OnSpanComplete(handler SpanHandler) uint64 {
	return t.registerSpanHandler(handler, false)
}

// OnSpanCompleteAsync registers an asynchronous handler called when spans complete.
func (t *Tracer) OnSpanCompleteAsync(handler SpanHandler) uint64 {
	return t.registerSpanHandler(handler, true)
}

// OnException registers a handler called when exceptions are captured.
func (t *Tracer) OnException(handler ErrorHandler) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.errorHandlers = append(t.errorHandlers, errorHandlerEntry{id: id, handler: handler})
	return id
}

func (t *Tracer) registerSpanHandler(handler SpanHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.spanHandlers = append(t.spanHandlers, spanHandlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})
	return id
}

// RemoveHandler removes a span or exception handler by ID.
func (t *Tracer) RemoveHandler(id uint64) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	// Preserve order.
	for i, h := range t.spanHandlers {
		if h.id == id {
			copy(t.spanHandlers[i:], t.spanHandlers[i+1:])
			t.spanHandlers = t.spanHandlers[:len(t.spanHandlers)-1]
			return
		}
	}
	for i, h := range t.errorHandlers {
		if h.id == id {
			copy(t.errorHandlers[i:], t.errorHandlers[i+1:])
			t.errorHandlers = t.errorHandlers[:len(t.errorHandlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (t *Tracer) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	t.panicHook = hook
}

// spanCompleted calls all registered span handlers with the completed span.
func (t *Tracer) spanCompleted(span Span) {
	t.handlersLock.RLock()
	if len(t.spanHandlers) == 0 {
		t.handlersLock.RUnlock()
		return
	}

	handlers := make([]spanHandlerEntry, len(t.spanHandlers))
	copy(handlers, t.spanHandlers)
	t.handlersLock.RUnlock()

	for _, h := range handlers {
		if h.async {
			entry := h
			if t.workers != nil {
				t.workers.submit(func() {
					t.safeSpanCall(entry, span)
				})
			} else {
				go t.safeSpanCall(entry, span)
			}
		} else {
			t.safeSpanCall(h, span)
		}
	}
}

func (t *Tracer) safeSpanCall(entry spanHandlerEntry, span Span) {
	defer func() {
		if r := recover(); r != nil {
			if t.panicHook != nil {
				t.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(span)
}

func (t *Tracer) safeCaptureCall(entry errorHandlerEntry, captured CapturedError) {
	defer func() {
		if r := recover(); r != nil {
			if t.panicHook != nil {
				t.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(captured)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
func (t *Tracer) EnableWorkerPool(workers, queueSize int) error {
	if t.workers != nil {
		return errors.New("worker pool already enabled")
	}
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	t.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &t.droppedTasks,
	}

	t.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go t.workers.run()
	}

	return nil
}

// DroppedTasks returns the number of handler invocations dropped due to a
// full worker queue.
func (t *Tracer) DroppedTasks() uint64 {
	return t.droppedTasks.Load()
}

// Close shuts down the tracer gracefully and cleans up resources.
// This should be called when the tracer is no longer needed.
func (t *Tracer) Close() {
	// Stop new handler executions.
	t.handlersLock.Lock()
	t.spanHandlers = nil
	t.errorHandlers = nil
	t.handlersLock.Unlock()

	// Wait for in-flight async tasks.
	if t.workers != nil {
		t.workers.shutdown()
		t.workers = nil
	}

	if t.traceIDPool != nil {
		t.traceIDPool.Close()
	}
	if t.spanIDPool != nil {
		t.spanIDPool.Close()
	}
}

// workerPool manages a fixed number of workers for processing async handlers.
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			return
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
