package yielding

import (
	"context"

	"github.com/mklimuk/yieldbus"
)

var _ yieldbus.SPIBus = &SPI[yieldbus.SPIBus]{}

// SPI wraps a four-wire bus and yields once after every successful operation.
type SPI[T yieldbus.SPIBus] struct {
	wrapped T
	sched   yieldbus.Yielder
}

// WrapSPI takes ownership of bus. A nil sched falls back to yieldbus.Gosched.
func WrapSPI[T yieldbus.SPIBus](bus T, sched yieldbus.Yielder) *SPI[T] {
	if sched == nil {
		sched = yieldbus.Gosched
	}
	return &SPI[T]{wrapped: bus, sched: sched}
}

// Unwrap gives the wrapped bus back. The adapter must not be used afterwards.
func (b *SPI[T]) Unwrap() T {
	return b.wrapped
}

func (b *SPI[T]) Transfer(ctx context.Context, read, write []byte) error {
	if err := b.wrapped.Transfer(ctx, read, write); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}

func (b *SPI[T]) TransferInPlace(ctx context.Context, words []byte) error {
	if err := b.wrapped.TransferInPlace(ctx, words); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}

func (b *SPI[T]) Read(ctx context.Context, buffer []byte) error {
	if err := b.wrapped.Read(ctx, buffer); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}

func (b *SPI[T]) Write(ctx context.Context, buffer []byte) error {
	if err := b.wrapped.Write(ctx, buffer); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}

func (b *SPI[T]) Flush(ctx context.Context) error {
	if err := b.wrapped.Flush(ctx); err != nil {
		return err
	}
	b.sched.Yield(ctx)
	return nil
}
