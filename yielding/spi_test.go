package yielding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSPI records operation names and fails every call once err is set.
type fakeSPI struct {
	calls []string
	err   error
}

func (f *fakeSPI) Transfer(_ context.Context, read, write []byte) error {
	f.calls = append(f.calls, "transfer")
	if f.err != nil {
		return f.err
	}
	copy(read, write)
	return nil
}

func (f *fakeSPI) TransferInPlace(_ context.Context, words []byte) error {
	f.calls = append(f.calls, "transfer-in-place")
	return f.err
}

func (f *fakeSPI) Read(_ context.Context, buffer []byte) error {
	f.calls = append(f.calls, "read")
	return f.err
}

func (f *fakeSPI) Write(_ context.Context, buffer []byte) error {
	f.calls = append(f.calls, "write")
	return f.err
}

func (f *fakeSPI) Flush(_ context.Context) error {
	f.calls = append(f.calls, "flush")
	return f.err
}

func TestSPI_YieldsOnceAfterEachOperation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		operation func(*SPI[*fakeSPI]) error
	}{
		{"transfer", func(b *SPI[*fakeSPI]) error {
			return b.Transfer(ctx, make([]byte, 4), []byte{1, 2, 3, 4})
		}},
		{"transfer-in-place", func(b *SPI[*fakeSPI]) error {
			return b.TransferInPlace(ctx, []byte{1, 2})
		}},
		{"read", func(b *SPI[*fakeSPI]) error {
			return b.Read(ctx, make([]byte, 4))
		}},
		{"write", func(b *SPI[*fakeSPI]) error {
			return b.Write(ctx, []byte{1, 2})
		}},
		{"flush", func(b *SPI[*fakeSPI]) error {
			return b.Flush(ctx)
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &fakeSPI{}
			sched := &countingYielder{}
			wrapped := WrapSPI(fake, sched)

			require.NoError(t, test.operation(wrapped))
			assert.Equal(t, []string{test.name}, fake.calls)
			assert.Equal(t, 1, sched.yields)
		})
	}

	t.Run("failure yields zero times", func(t *testing.T) {
		boom := errors.New("spi transfer failed")
		fake := &fakeSPI{err: boom}
		sched := &countingYielder{}
		wrapped := WrapSPI(fake, sched)

		for _, test := range tests {
			err := test.operation(wrapped)
			assert.Same(t, boom, err)
		}
		assert.Zero(t, sched.yields)
	})
}

func TestSPI_TransferForwardsBuffers(t *testing.T) {
	fake := &fakeSPI{}
	wrapped := WrapSPI(fake, &countingYielder{})

	write := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	read := make([]byte, 4)
	require.NoError(t, wrapped.Transfer(context.Background(), read, write))
	assert.Equal(t, write, read, "loopback fake echoes the write buffer")
}

func TestSPI_UnwrapRecoversWrappedBus(t *testing.T) {
	fake := &fakeSPI{}
	wrapped := WrapSPI(fake, &countingYielder{})

	require.NoError(t, wrapped.Flush(context.Background()))
	recovered := wrapped.Unwrap()
	assert.Same(t, fake, recovered)
	assert.Equal(t, []string{"flush"}, recovered.calls)
}
