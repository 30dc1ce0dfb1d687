package events

import (
	"context"
	"sync"
)

// dataKeyType is a private type for context keys to avoid collisions.
type dataKeyType string

const dataKey dataKeyType = "events-data"

// TagKV is one tag entry in insertion order.
type TagKV struct {
	Key   string
	Value string
}

// Data is the per-invocation record for one execution of an Event.
// A fresh Data is created for every call, so a recursive event produces a
// distinct Data per recursion level; identity comparisons on the pointer
// distinguish the levels.
//
// Args, KWArgs, Crashed, Err, and ExcDesc are written by the runner before
// the callbacks that read them fire; the lifecycle around one invocation is
// synchronous, so no locking is needed for them.
type Data struct {
	Event   *Event
	Name    string
	Args    []any
	KWArgs  map[string]any
	Crashed bool
	Err     error
	ExcDesc string

	mu   sync.Mutex
	ctx  context.Context
	tags []TagKV
	idx  map[string]int
}

// Context returns the invocation context. About-to-run callbacks may have
// replaced it via SetContext; the wrapped function receives whatever is
// current when it starts.
func (d *Data) Context() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// SetContext replaces the invocation context. Instrumentation callbacks use
// this to layer values (such as an active span) onto the context the
// wrapped function will run with.
func (d *Data) SetContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
}

// SetTag records a tag on this invocation. Writing an existing key updates
// it in place, so iteration order stays insertion order with last-writer-wins
// values.
func (d *Data) SetTag(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.idx == nil {
		d.idx = make(map[string]int)
	}
	if i, ok := d.idx[key]; ok {
		d.tags[i].Value = value
		return
	}
	d.idx[key] = len(d.tags)
	d.tags = append(d.tags, TagKV{Key: key, Value: value})
}

// Tag returns the value recorded for key.
func (d *Data) Tag(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.idx == nil {
		return "", false
	}
	i, ok := d.idx[key]
	if !ok {
		return "", false
	}
	return d.tags[i].Value, true
}

// Tags returns the invocation's tags in insertion order.
func (d *Data) Tags() []TagKV {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]TagKV, len(d.tags))
	copy(out, d.tags)
	return out
}

// markCrashed records a failed outcome.
func (d *Data) markCrashed(err error) {
	d.Crashed = true
	d.Err = err
	d.ExcDesc = err.Error()
}

// FromContext returns the Data for the invocation the context belongs to,
// or nil when the context is not inside an event invocation.
func FromContext(ctx context.Context) *Data {
	if ctx == nil {
		return nil
	}
	if d, ok := ctx.Value(dataKey).(*Data); ok {
		return d
	}
	return nil
}

// Tag records a tag on the current invocation. No-op when ctx is not inside
// an event invocation.
func Tag(ctx context.Context, key, value string) {
	if d := FromContext(ctx); d != nil {
		d.SetTag(key, value)
	}
}
