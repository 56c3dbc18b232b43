// Package progress carries per-goroutine progress and output callbacks
// through a context, so the Executor's install pool and invocation pool can
// report to a UI without threading a reporter parameter through every call.
package progress

import "context"

// InstallEvent reports one Tool install's progress.
type InstallEvent struct {
	ToolName string
	Phase    string // "downloading", "extracting", "validating", "done"
	Detail   string
}

// InvocationEvent reports one InvocationPlan's progress.
type InvocationEvent struct {
	PluginName string
	DriverName string
	Phase      string // "staging", "running", "parsing", "done"
}

// InstallCallback receives InstallEvents.
type InstallCallback func(InstallEvent)

// InvocationCallback receives InvocationEvents.
type InvocationCallback func(InvocationEvent)

// Callback constrains the types storable via WithCallback/FromContext.
type Callback interface {
	InstallCallback | InvocationCallback
}

type callbackKey[T Callback] struct{}

// WithCallback returns a context carrying cb, retrievable with FromContext
// using the same type parameter.
func WithCallback[T Callback](ctx context.Context, cb T) context.Context {
	return context.WithValue(ctx, callbackKey[T]{}, cb)
}

// FromContext extracts the callback of type T stored in ctx, or the zero
// value (a nil func) if none was set.
func FromContext[T Callback](ctx context.Context) T {
	if cb, ok := ctx.Value(callbackKey[T]{}).(T); ok {
		return cb
	}
	var zero T
	return zero
}
