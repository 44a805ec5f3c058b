// Package groutine starts named goroutines. Names show up as pprof
// labels, which makes the session loop, watchdog, and transport reader
// distinguishable in stack dumps.
package groutine

import (
	"context"
	"runtime/pprof"
)

// Go starts fn on a new goroutine labeled with name. A nil parentCtx
// falls back to context.Background().
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	go pprof.Do(parentCtx, pprof.Labels("goroutine_name", name), fn)
}
