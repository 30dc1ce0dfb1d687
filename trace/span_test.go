package trace

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestActiveSpanSetTag(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartTransaction(context.Background(), "test")

	span.SetTag("key1", "value1")
	span.SetTag("key2", "value2")

	if v, ok := span.GetTag("key1"); !ok || v != "value1" {
		t.Errorf("Expected tag key1=value1, got %q (present=%v)", v, ok)
	}

	if v, ok := span.GetTag("key2"); !ok || v != "value2" {
		t.Errorf("Expected tag key2=value2, got %q (present=%v)", v, ok)
	}

	if _, ok := span.GetTag("missing"); ok {
		t.Error("Expected not to find missing tag")
	}
}

func TestActiveSpanSetTagAfterFinish(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartTransaction(context.Background(), "test")
	span.SetTag("before", "yes")
	span.Finish()
	span.SetTag("after", "no")

	if _, ok := span.GetTag("before"); !ok {
		t.Error("Expected tag set before finish to remain")
	}
	if _, ok := span.GetTag("after"); ok {
		t.Error("Expected tag set after finish to be dropped")
	}
}

func TestActiveSpanSetStatus(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var completed []Span
	tracer.OnSpanComplete(func(span Span) {
		completed = append(completed, span)
	})

	_, span := tracer.StartTransaction(context.Background(), "test")
	span.SetStatus(StatusOK)
	span.Finish()

	// Status writes after finish are dropped.
	span.SetStatus(StatusError)

	if len(completed) != 1 {
		t.Fatalf("Expected 1 completed span, got %d", len(completed))
	}
	if completed[0].Status != StatusOK {
		t.Errorf("Expected status %q, got %q", StatusOK, completed[0].Status)
	}
}

func TestActiveSpanFinishIdempotent(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var count int
	tracer.OnSpanComplete(func(_ Span) { count++ })

	_, span := tracer.StartTransaction(context.Background(), "test")
	span.Finish()
	span.Finish()
	span.Finish()

	if count != 1 {
		t.Errorf("Expected exactly 1 completion, got %d", count)
	}
	if !span.Finished() {
		t.Error("Expected span to report finished")
	}
}

func TestActiveSpanSnapshot(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartTransaction(context.Background(), "test")
	span.SetTag("key", "value")

	snap := span.Snapshot()
	snap.Tags["key"] = "mutated"

	if v, _ := span.GetTag("key"); v != "value" {
		t.Errorf("Expected snapshot mutation not to affect span, got %q", v)
	}
}

func TestSpanFromContext(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	if SpanFromContext(context.Background()) != nil {
		t.Error("Expected nil span for empty context")
	}
	if SpanFromContext(nil) != nil { //nolint:staticcheck // Deliberate nil context.
		t.Error("Expected nil span for nil context")
	}

	ctx, span := tracer.StartTransaction(context.Background(), "test")
	if SpanFromContext(ctx) != span {
		t.Error("Expected span to be current on returned context")
	}

	reattached := span.Context(context.Background())
	if SpanFromContext(reattached) != span {
		t.Error("Expected Context to carry the span")
	}
}

func TestConcurrentTagSetting(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartTransaction(context.Background(), "test")

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			span.SetTag(fmt.Sprintf("key%d", n), fmt.Sprintf("value%d", n))
		}(i)
	}

	wg.Wait()

	for i := 0; i < numGoroutines; i++ {
		key := fmt.Sprintf("key%d", i)
		expected := fmt.Sprintf("value%d", i)
		if actual, ok := span.GetTag(key); !ok {
			t.Errorf("Expected to find tag %s", key)
		} else if actual != expected {
			t.Errorf("Expected %s=%s, got %s", key, expected, actual)
		}
	}
}

func TestSpanTiming(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var completed []Span
	tracer.OnSpanComplete(func(span Span) {
		completed = append(completed, span)
	})

	_, span := tracer.StartTransaction(context.Background(), "test")
	time.Sleep(time.Millisecond)
	span.Finish()

	if len(completed) != 1 {
		t.Fatalf("Expected 1 completed span, got %d", len(completed))
	}
	if completed[0].StartTime.IsZero() || completed[0].EndTime.IsZero() {
		t.Error("Expected start and end times to be set")
	}
	if completed[0].Duration <= 0 {
		t.Errorf("Expected positive duration, got %v", completed[0].Duration)
	}
}
