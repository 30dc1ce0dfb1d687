package observe

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sharpencrag/observe-sentry/events"
)

// bind registers the lifecycle instrumentation with the event framework:
// the trace binder on about-to-run, and one log callback per phase. The
// log callbacks and the finalizer observe the same invocation data but
// are independent subscribers; no ordering between them is guaranteed.
func (t *Telemetry) bind() {
	t.subscribe(events.AboutToRun, t.beginTrace)
	t.subscribe(events.AboutToRun, t.logStatus("about to run...", zapcore.InfoLevel))
	t.subscribe(events.Completed, t.logStatus("completed", zapcore.InfoLevel))
	t.subscribe(events.Crashed, t.logStatus("crashed!", zapcore.WarnLevel))
}

func (t *Telemetry) subscribe(status events.Status, cb events.Callback) {
	id := events.AddGlobalCallback(status, cb)
	t.mu.Lock()
	t.subs = append(t.subs, subscription{status: status, id: id})
	t.mu.Unlock()
}

// beginTrace opens a span for one event invocation and arms its finalizer.
//
// Span selection: with no active span the invocation becomes a new root
// transaction; an elevated event under an active span becomes a linked
// root sharing the active trace; anything else becomes a child span. The
// invocation's context is replaced with one carrying the new span, so
// nested invocations parent correctly.
func (t *Telemetry) beginTrace(enter *events.Data) {
	t.guard("begin trace", func() error {
		event := enter.Event
		ctx := enter.Context()

		var span Span
		switch {
		case t.backend.CurrentSpan(ctx) == nil:
			ctx, span = t.backend.StartTransaction(ctx, event.Name())
		case event.Elevated():
			ctx, span = t.backend.StartLinkedRoot(ctx, event.Name())
		default:
			ctx, span = t.backend.StartChild(ctx, event.Name())
		}
		enter.SetContext(ctx)

		// One finalizer per invocation. The exited signal belongs to the
		// event definition, so a recursive call sees every level's exit;
		// the identity check keeps each finalizer bound to its own level.
		exited := event.Exited()
		var id uint64
		id = exited.Connect(func(exit *events.Data) {
			t.guard("finish trace", func() error {
				if exit != enter {
					return nil
				}

				if exit.Crashed {
					t.backend.CaptureException(enter.Context(), exit.Err)
				} else {
					span.SetStatus(StatusOK)
				}
				for _, tag := range exit.Tags() {
					span.SetTag(tag.Key, tag.Value)
				}
				span.Finish()
				exited.Disconnect(id)
				return nil
			})
		})
		return nil
	})
}

// logStatus builds a log callback for one lifecycle phase. The line reads
// "'<name>' <status>", with the crash description appended when the
// invocation crashed; args, kwargs, and all current tags ride along as
// structured fields.
func (t *Telemetry) logStatus(status string, level zapcore.Level) events.Callback {
	return func(d *events.Data) {
		t.guard("log status", func() error {
			msg := fmt.Sprintf("'%s' %s", d.Name, status)
			if d.Crashed {
				msg = fmt.Sprintf("%s <%s>", msg, d.ExcDesc)
			}

			tags := d.Tags()
			fields := make([]zap.Field, 0, len(tags)+2)
			fields = append(fields,
				zap.Any("args", d.Args),
				zap.Any("kwargs", d.KWArgs),
			)
			for _, tag := range tags {
				fields = append(fields, zap.String(tag.Key, tag.Value))
			}

			t.log.Log(level, msg, fields...)
			return nil
		})
	}
}
