package trace

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector buffers completed spans for batch export.
// Register Collect with Tracer.OnSpanComplete to receive finished spans.
// Safe for concurrent use by multiple goroutines.
type Collector struct {
	spans        []Span
	spansCh      chan Span
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	name         string
	mu           sync.Mutex
	closed       atomic.Bool
	syncMode     bool // Bypass channel for synchronous collection.
}

// NewCollector creates a new collector with the specified name and buffer size.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:    name,
		spans:   make([]Span, 0, 8),
		spansCh: make(chan Span, bufferSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.start()
	return c
}

// start runs the collector's main loop, receiving spans from the channel.
func (c *Collector) start() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain remaining spans before shutdown.
			for {
				select {
				case span := <-c.spansCh:
					c.buffer(span)
				default:
					return
				}
			}
		case span := <-c.spansCh:
			c.buffer(span)
		}
	}
}

// Close shuts down the collector gracefully. Spans already queued are
// drained into the buffer and remain exportable.
func (c *Collector) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.stopCh)
	select {
	case <-c.done:
	case <-time.After(100 * time.Millisecond):
		// Shutdown timed out; buffered spans stay exportable regardless.
	}
}

// Collect buffers a completed span with backpressure protection.
// If the internal channel is full, the span is dropped and the drop counter
// is incremented. In sync mode, spans are buffered directly so collection
// is deterministic for tests.
//
// Collect's signature matches SpanHandler so it can be registered directly
// on a Tracer.
func (c *Collector) Collect(span Span) {
	if c.syncMode {
		if c.closed.Load() {
			c.droppedCount.Add(1)
			return
		}
		c.buffer(span)
		return
	}

	select {
	case c.spansCh <- span:
	default:
		// Channel full - drop span to prevent blocking.
		c.droppedCount.Add(1)
	}
}

// buffer adds a span to the internal buffer.
func (c *Collector) buffer(span Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, span)
}

// Export returns a copy of all buffered spans and clears the internal buffer.
// The returned slice is safe to modify without affecting the collector.
func (c *Collector) Export() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}

	result := make([]Span, len(c.spans))
	for i := range c.spans {
		result[i] = c.spans[i]
		// Deep copy the Tags map to prevent sharing.
		if c.spans[i].Tags != nil {
			result[i].Tags = make(map[string]string, len(c.spans[i].Tags))
			for k, v := range c.spans[i].Tags {
				result[i].Tags[k] = v
			}
		}
	}

	// Shrink only very oversized buffers to avoid allocation churn.
	if cap(c.spans) > 256 && len(c.spans) < cap(c.spans)/8 {
		c.spans = make([]Span, 0, cap(c.spans)/4)
	} else {
		c.spans = c.spans[:0]
	}

	return result
}

// Count returns the current number of buffered spans.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// DroppedCount returns the total number of spans dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode enables synchronous collection for testing.
// When enabled, spans are buffered directly without using the channel,
// which makes tests deterministic by eliminating async behavior.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode = sync
}

// Reset clears all buffered spans and resets the drop counter.
// Does not affect the running goroutine - use Close for that.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.spans = c.spans[:0]
	c.droppedCount.Store(0)
}
