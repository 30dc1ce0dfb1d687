// Package observe bridges the events framework to an error- and
// performance-monitoring backend.
//
// For every event invocation it opens a trace span (root, linked root, or
// child, depending on nesting and the event's elevated flag), logs each
// lifecycle transition, flushes the invocation's tags onto the span at
// exit, forwards crashes to the backend's exception sink, and closes the
// span exactly once - even under recursion, panics, and concurrent
// invocations.
//
// Basic Usage:
//
//	logger, _ := zap.NewProduction()
//	t, err := observe.Init(
//		observe.WithLogger(logger),
//	)
//	if err != nil {
//		// no DSN configured, or strict-mode failure
//	}
//	defer observe.Teardown()
//
//	ev := events.New("load-asset")
//	err = ev.Run(ctx, func(ctx context.Context) error {
//		events.Tag(ctx, "asset.id", "123")
//		return doWork(ctx)
//	})
//
// Configuration:
//
// The DSN resolves from the WithDSN option or the SENTRY_DSN environment
// variable and is mandatory. The sample rate resolves from WithSampleRate
// or SENTRY_SAMPLE_RATE, defaulting to 1.0.
//
// Error Handling:
//
// Application errors returned by wrapped functions always propagate to the
// caller unchanged; the only reaction here is observational. Errors inside
// the instrumentation itself are logged and swallowed so telemetry can
// never crash the host - unless RaiseInternalExceptions is set, which is
// meant for tests and debugging.
package observe
