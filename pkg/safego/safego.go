// Package safego runs fire-and-forget goroutines that never take the
// process down: panics are recovered and logged.
package safego

import (
	"context"
	"runtime/debug"

	"github.com/hatcher/sessionhub/pkg/logs"
)

// Go runs f on a new goroutine with panic recovery.
func Go(ctx context.Context, f func()) {
	go func() {
		defer Recovery(ctx)
		f()
	}()
}

// Recovery recovers a panic and logs it with the stack.
func Recovery(ctx context.Context) {
	e := recover()
	if e == nil {
		return
	}
	logs.Errorf("[Recovery] caught panic: %v\nstacktrace:\n%s", e, string(debug.Stack()))
}
