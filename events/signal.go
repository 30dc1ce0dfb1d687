package events

import (
	"sync"
	"sync/atomic"
)

// Callback receives the data object for a single event invocation.
type Callback func(*Data)

type signalEntry struct {
	fn Callback
	id uint64
}

// Signal is an ordered set of callbacks that can be connected and
// disconnected dynamically. Connect returns an ID that Disconnect accepts,
// so subscribers can remove exactly the callback they registered.
// Safe for concurrent use by multiple goroutines.
type Signal struct {
	entries []signalEntry
	nextID  atomic.Uint64
	mu      sync.RWMutex
}

// NewSignal creates an empty signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Connect registers a callback and returns its ID.
// Callbacks fire in connection order.
func (s *Signal) Connect(fn Callback) uint64 {
	if fn == nil {
		return 0
	}

	id := s.nextID.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, signalEntry{fn: fn, id: id})
	return id
}

// Disconnect removes the callback registered under id.
// Unknown IDs are ignored.
func (s *Signal) Disconnect(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Preserve order.
	for i, e := range s.entries {
		if e.id == id {
			copy(s.entries[i:], s.entries[i+1:])
			s.entries = s.entries[:len(s.entries)-1]
			return
		}
	}
}

// Emit calls every connected callback with d, in connection order.
// Callbacks connected or disconnected during an emit take effect on the
// next emit.
func (s *Signal) Emit(d *Data) {
	s.mu.RLock()
	entries := make([]signalEntry, len(s.entries))
	copy(entries, s.entries)
	s.mu.RUnlock()

	for _, e := range entries {
		e.fn(d)
	}
}

// Len returns the number of connected callbacks.
func (s *Signal) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
