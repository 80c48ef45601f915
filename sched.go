package yieldbus

import (
	"context"
	"runtime"
)

// Yielder hands control back to the scheduler, resuming the caller at some
// later point of the scheduler's choosing.
type Yielder interface {
	Yield(ctx context.Context)
}

// YieldFunc adapts a plain function to the Yielder interface.
type YieldFunc func(ctx context.Context)

func (f YieldFunc) Yield(ctx context.Context) { f(ctx) }

// Gosched yields the calling goroutine to the Go runtime scheduler. It is the
// default used by the yielding adapters when no Yielder is supplied.
var Gosched Yielder = YieldFunc(func(context.Context) { runtime.Gosched() })
