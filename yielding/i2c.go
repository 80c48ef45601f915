// Package yielding wraps peripheral drivers so that the calling task hands
// control back to a cooperative scheduler after each completed operation.
// This keeps a long run of back-to-back bus or storage operations from
// monopolizing a single execution context: other ready tasks get a turn
// between operations.
//
// Each adapter takes exclusive ownership of the driver it wraps and exposes
// the same capability surface. Operations are forwarded unchanged; a failed
// operation returns the wrapped driver's error as-is and does not yield.
package yielding

import (
	"context"

	"github.com/mklimuk/yieldbus"
)

var _ yieldbus.I2CBus = &I2C[yieldbus.I2CBus]{}

// I2C wraps a two-wire bus and yields once after every successful operation.
type I2C[T yieldbus.I2CBus] struct {
	wrapped T
	sched   yieldbus.Yielder
}

// WrapI2C takes ownership of bus. A nil sched falls back to yieldbus.Gosched.
func WrapI2C[T yieldbus.I2CBus](bus T, sched yieldbus.Yielder) *I2C[T] {
	if sched == nil {
		sched = yieldbus.Gosched
	}
	return &I2C[T]{wrapped: bus, sched: sched}
}

// Unwrap gives the wrapped bus back. The adapter must not be used afterwards.
func (b *I2C[T]) Unwrap() T {
	return b.wrapped
}

func (b *I2C[T]) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.wrapped.ReadFromAddr(ctx, address, buffer); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}

func (b *I2C[T]) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.wrapped.WriteToAddr(ctx, address, buffer); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}

func (b *I2C[T]) WriteReadFromAddr(ctx context.Context, address byte, w, r []byte) error {
	if err := b.wrapped.WriteReadFromAddr(ctx, address, w, r); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}

func (b *I2C[T]) Transaction(ctx context.Context, address byte, ops []yieldbus.Operation) error {
	if err := b.wrapped.Transaction(ctx, address, ops); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}
