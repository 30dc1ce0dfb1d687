package observe

import (
	"context"
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

// CallCountTag formats a function's name for call-count tagging.
func CallCountTag(name string) string {
	return name + " calls"
}

// CountCalls wraps fn so each call increments a call-count tag on the
// active span. The tag key is derived from fn's name; anonymous functions
// get their compiler-assigned name, so prefer CountCallsNamed for those.
func (t *Telemetry) CountCalls(fn func(context.Context) error) func(context.Context) error {
	return t.CountCallsNamed(funcName(fn), fn)
}

// CountCallsNamed wraps fn so each call increments the "<name> calls" tag
// on the active span. The current value is read from the span (zero when
// absent or non-numeric), incremented, and written back as a string. With
// no active span the counter is a no-op. The wrapper adds no error
// handling of its own: fn's result passes through untouched.
func (t *Telemetry) CountCallsNamed(name string, fn func(context.Context) error) func(context.Context) error {
	tag := CallCountTag(name)
	return func(ctx context.Context) error {
		if span := t.backend.CurrentSpan(ctx); span != nil {
			count := 0
			if v, ok := span.GetTag(tag); ok {
				if n, err := strconv.Atoi(v); err == nil {
					count = n
				}
			}
			span.SetTag(tag, strconv.Itoa(count+1))
		}
		return fn(ctx)
	}
}

// funcName resolves a function's short name: package path and receiver
// prefix stripped, method-value suffix trimmed.
func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	name = name[strings.LastIndexByte(name, '/')+1:]
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
