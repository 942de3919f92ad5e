// Package kernel provides panic recovery for stage bodies and background tasks,
// and the per-user admission limiter in front of routed runs.
//
// A panic inside a stage or the stream consumer must not crash the process;
// these helpers turn it into a logged PanicError.
package kernel

import (
	"fmt"
	"runtime/debug"
)

// Logger is the subset of the structured logger recovery needs.
type Logger interface {
	Error(msg string, keysAndValues ...any)
}

// PanicError wraps a recovered panic value.
type PanicError struct {
	Operation string
	Value     any
	Stack     string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.Value)
}

func recovered(logger Logger, event, operation string, r any) *PanicError {
	pe := &PanicError{Operation: operation, Value: r, Stack: string(debug.Stack())}
	if logger != nil {
		logger.Error(event,
			"operation", operation,
			"panic", fmt.Sprintf("%v", r),
			"stack", pe.Stack,
		)
	}
	return pe
}

// SafeExecute runs fn and converts a panic into a *PanicError.
func SafeExecute(logger Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(logger, "panic_recovered", operation, r)
		}
	}()
	return fn()
}

// SafeExecuteWithResult is SafeExecute for functions that also return a value.
func SafeExecuteWithResult[T any](logger Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = recovered(logger, "panic_recovered", operation, r)
		}
	}()
	return fn()
}

// SafeGo runs fn on a new goroutine with panic recovery.
// onPanic, if set, receives the recovered error. The returned channel is
// closed when the goroutine exits, normally or not.
func SafeGo(logger Logger, operation string, fn func(), onPanic func(err *PanicError)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				pe := recovered(logger, "goroutine_panic_recovered", operation, r)
				if onPanic != nil {
					onPanic(pe)
				}
			}
		}()
		fn()
	}()
	return done
}
