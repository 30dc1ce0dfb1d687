package events

// The process-wide registry notifies subscribers of every event
// invocation's lifecycle phases. Instrumentation (logging, tracing)
// registers here once at initialization and removes its callbacks on
// teardown using the returned IDs.
//
// The map itself is never mutated after package init; each Signal handles
// its own locking.
var registry = map[Status]*Signal{
	AboutToRun: NewSignal(),
	Completed:  NewSignal(),
	Crashed:    NewSignal(),
}

// AddGlobalCallback subscribes cb to one lifecycle phase of every event in
// the process. The returned ID removes exactly this subscription.
func AddGlobalCallback(status Status, cb Callback) uint64 {
	sig, ok := registry[status]
	if !ok {
		return 0
	}
	return sig.Connect(cb)
}

// RemoveGlobalCallback removes a subscription made with AddGlobalCallback.
func RemoveGlobalCallback(status Status, id uint64) {
	if sig, ok := registry[status]; ok {
		sig.Disconnect(id)
	}
}

func emitGlobal(status Status, d *Data) {
	if sig := registry[status]; sig != nil {
		sig.Emit(d)
	}
}
