package trace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zoobzio/clockz"
)

func TestStartTransaction(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	ctx, span := tracer.StartTransaction(context.Background(), "test-operation")

	snap := span.Snapshot()
	if snap.Name != "test-operation" {
		t.Errorf("Expected span name 'test-operation', got %s", snap.Name)
	}
	if snap.TraceID == "" {
		t.Error("Expected non-empty TraceID")
	}
	if snap.SpanID == "" {
		t.Error("Expected non-empty SpanID")
	}
	if snap.ParentID != "" {
		t.Error("Expected empty ParentID for root transaction")
	}
	if !snap.Transaction {
		t.Error("Expected Transaction to be true for root")
	}
	if snap.StartTime.IsZero() {
		t.Error("Expected non-zero StartTime")
	}

	if SpanFromContext(ctx) != span {
		t.Error("Expected span to be propagated in context")
	}
}

func TestStartTransactionIgnoresParent(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	parentCtx, parent := tracer.StartTransaction(context.Background(), "parent")
	_, root := tracer.StartTransaction(parentCtx, "independent")

	if root.TraceID() == parent.TraceID() {
		t.Error("Expected an independent trace ID")
	}
	if root.Snapshot().ParentID != "" {
		t.Error("Expected no parent linkage")
	}
}

func TestStartChild(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	parentCtx, parent := tracer.StartTransaction(context.Background(), "parent-operation")
	childCtx, child := tracer.StartChild(parentCtx, "child-operation")

	if child.TraceID() != parent.TraceID() {
		t.Errorf("Expected child TraceID %s, got %s", parent.TraceID(), child.TraceID())
	}

	snap := child.Snapshot()
	if snap.ParentID != parent.SpanID() {
		t.Errorf("Expected child ParentID %s, got %s", parent.SpanID(), snap.ParentID)
	}
	if snap.Transaction {
		t.Error("Expected child span not to be a transaction")
	}
	if child.SpanID() == parent.SpanID() {
		t.Error("Expected child to have different SpanID from parent")
	}

	if SpanFromContext(childCtx) != child {
		t.Error("Expected child span to be current in context")
	}
}

func TestStartChildWithoutParent(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartChild(context.Background(), "orphan")

	snap := span.Snapshot()
	if !snap.Transaction {
		t.Error("Expected fallback to a root transaction")
	}
	if snap.ParentID != "" {
		t.Error("Expected no parent linkage")
	}
}

func TestStartLinkedRoot(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	parentCtx, parent := tracer.StartTransaction(context.Background(), "parent")
	linkedCtx, linked := tracer.StartLinkedRoot(parentCtx, "linked")

	if linked.TraceID() != parent.TraceID() {
		t.Error("Expected linked root to share the parent's trace ID")
	}

	snap := linked.Snapshot()
	if snap.ParentID != parent.SpanID() {
		t.Errorf("Expected predecessor %s, got %s", parent.SpanID(), snap.ParentID)
	}
	if !snap.Transaction {
		t.Error("Expected linked root to be a transaction")
	}

	if SpanFromContext(linkedCtx) != linked {
		t.Error("Expected linked root to be current in context")
	}
}

func TestStartLinkedRootWithoutParent(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartLinkedRoot(context.Background(), "linked")

	snap := span.Snapshot()
	if !snap.Transaction {
		t.Error("Expected fallback to a root transaction")
	}
	if snap.ParentID != "" {
		t.Error("Expected no parent linkage without a current span")
	}
}

func TestHandlerRemoval(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var first, second int
	id := tracer.OnSpanComplete(func(_ Span) { first++ })
	tracer.OnSpanComplete(func(_ Span) { second++ })

	_, span := tracer.StartTransaction(context.Background(), "test")
	span.Finish()

	tracer.RemoveHandler(id)

	_, span = tracer.StartTransaction(context.Background(), "test")
	span.Finish()

	if first != 1 {
		t.Errorf("Expected removed handler to fire once, got %d", first)
	}
	if second != 2 {
		t.Errorf("Expected remaining handler to fire twice, got %d", second)
	}
}

func TestCaptureException(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var captured []CapturedError
	tracer.OnException(func(c CapturedError) {
		captured = append(captured, c)
	})

	boom := errors.New("boom")
	ctx, span := tracer.StartTransaction(context.Background(), "test")
	tracer.CaptureException(ctx, boom)

	if len(captured) != 1 {
		t.Fatalf("Expected 1 captured error, got %d", len(captured))
	}
	if !errors.Is(captured[0].Err, boom) {
		t.Errorf("Expected captured error %v, got %v", boom, captured[0].Err)
	}
	if captured[0].TraceID != span.TraceID() || captured[0].SpanID != span.SpanID() {
		t.Error("Expected capture to be correlated to the current span")
	}
}

func TestCaptureExceptionWithoutSpan(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var captured []CapturedError
	tracer.OnException(func(c CapturedError) {
		captured = append(captured, c)
	})

	tracer.CaptureException(context.Background(), errors.New("boom"))

	if len(captured) != 1 {
		t.Fatalf("Expected 1 captured error, got %d", len(captured))
	}
	if captured[0].TraceID != "" || captured[0].SpanID != "" {
		t.Error("Expected empty correlation without a current span")
	}
}

func TestCaptureExceptionNilError(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var count int
	tracer.OnException(func(_ CapturedError) { count++ })

	tracer.CaptureException(context.Background(), nil)

	if count != 0 {
		t.Errorf("Expected nil errors to be ignored, got %d captures", count)
	}
}

func TestExceptionHandlerRemoval(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var count int
	id := tracer.OnException(func(_ CapturedError) { count++ })

	tracer.CaptureException(context.Background(), errors.New("one"))
	tracer.RemoveHandler(id)
	tracer.CaptureException(context.Background(), errors.New("two"))

	if count != 1 {
		t.Errorf("Expected 1 capture after removal, got %d", count)
	}
}

func TestPanicHook(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var hookedID uint64
	var hooked interface{}
	tracer.SetPanicHook(func(handlerID uint64, r interface{}) {
		hookedID = handlerID
		hooked = r
	})

	id := tracer.OnSpanComplete(func(_ Span) {
		panic("handler failure")
	})

	_, span := tracer.StartTransaction(context.Background(), "test")
	span.Finish()

	if hookedID != id {
		t.Errorf("Expected panic hook for handler %d, got %d", id, hookedID)
	}
	if hooked != "handler failure" {
		t.Errorf("Expected panic value 'handler failure', got %v", hooked)
	}
}

func TestWithClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	tracer := New().WithClock(clock)
	defer tracer.Close()

	var completed []Span
	tracer.OnSpanComplete(func(span Span) {
		completed = append(completed, span)
	})

	_, span := tracer.StartTransaction(context.Background(), "test")
	span.Finish()

	if len(completed) != 1 {
		t.Fatalf("Expected 1 completed span, got %d", len(completed))
	}
	if !completed[0].StartTime.Equal(clock.Now()) || !completed[0].EndTime.Equal(clock.Now()) {
		t.Error("Expected span times to come from the injected clock")
	}
	if completed[0].Duration != 0 {
		t.Errorf("Expected zero duration on a frozen clock, got %v", completed[0].Duration)
	}
}

func TestConcurrentRoots(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	const n = 50
	traceIDs := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, span := tracer.StartTransaction(context.Background(), "concurrent")
			traceIDs[i] = span.TraceID()
			span.Finish()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range traceIDs {
		if id == "" {
			t.Fatal("Expected every span to have a trace ID")
		}
		if seen[id] {
			t.Fatalf("Expected independent trace IDs, got duplicate %s", id)
		}
		seen[id] = true
	}
}
