package yielding

import (
	"context"

	"github.com/mklimuk/yieldbus"
)

var _ yieldbus.Flash = &Flash[yieldbus.Flash]{}

// Flash wraps byte-addressable storage. Writes and erases yield once after
// each successful device call; reads and the size getters are forwarded
// without yielding since they are not expected to be long-running. Erase
// requests larger than the device erase granularity are split into per-unit
// calls with a yield between each, bounding how long a single scheduler turn
// is blocked by one erase unit's duration.
type Flash[T yieldbus.Flash] struct {
	wrapped T
	sched   yieldbus.Yielder
}

// WrapFlash takes ownership of dev. A nil sched falls back to yieldbus.Gosched.
func WrapFlash[T yieldbus.Flash](dev T, sched yieldbus.Yielder) *Flash[T] {
	if sched == nil {
		sched = yieldbus.Gosched
	}
	return &Flash[T]{wrapped: dev, sched: sched}
}

// Unwrap gives the wrapped device back. The adapter must not be used
// afterwards.
func (f *Flash[T]) Unwrap() T {
	return f.wrapped
}

func (f *Flash[T]) ReadSize() int  { return f.wrapped.ReadSize() }
func (f *Flash[T]) WriteSize() int { return f.wrapped.WriteSize() }
func (f *Flash[T]) EraseSize() int { return f.wrapped.EraseSize() }
func (f *Flash[T]) Capacity() int  { return f.wrapped.Capacity() }

func (f *Flash[T]) Read(ctx context.Context, offset uint32, buffer []byte) error {
	return f.wrapped.Read(ctx, offset, buffer)
}

func (f *Flash[T]) Write(ctx context.Context, offset uint32, buffer []byte) error {
	if err := f.wrapped.Write(ctx, offset, buffer); err != nil {
		return err
	}
	f.sched.Yield(ctx)
	return nil
}

// Erase partitions [from, to) into sub-ranges of at most EraseSize bytes and
// erases them one device call at a time, yielding between calls. The first
// failing sub-range aborts the rest; already erased sub-ranges stay erased.
func (f *Flash[T]) Erase(ctx context.Context, from, to uint32) error {
	size := uint32(f.wrapped.EraseSize())
	for ; from < to; from += size {
		end := from + size
		if end > to {
			end = to
		}
		if err := f.wrapped.Erase(ctx, from, end); err != nil {
			return err
		}
		f.sched.Yield(ctx)
	}
	return nil
}
