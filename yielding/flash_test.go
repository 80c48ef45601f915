package yielding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingYielder struct {
	yields int
}

func (y *countingYielder) Yield(context.Context) { y.yields++ }

// fakeFlash records the erase ranges it receives and can be told to fail at
// the n-th erase call (1-indexed).
type fakeFlash struct {
	eraseSize int
	capacity  int
	erases    [][2]uint32
	writes    []uint32
	reads     []uint32
	failAt    int
	err       error
}

func (f *fakeFlash) ReadSize() int  { return 1 }
func (f *fakeFlash) WriteSize() int { return 4 }
func (f *fakeFlash) EraseSize() int { return f.eraseSize }
func (f *fakeFlash) Capacity() int  { return f.capacity }

func (f *fakeFlash) Read(_ context.Context, offset uint32, buffer []byte) error {
	f.reads = append(f.reads, offset)
	return f.err
}

func (f *fakeFlash) Write(_ context.Context, offset uint32, buffer []byte) error {
	f.writes = append(f.writes, offset)
	return f.err
}

func (f *fakeFlash) Erase(_ context.Context, from, to uint32) error {
	f.erases = append(f.erases, [2]uint32{from, to})
	if f.failAt > 0 && len(f.erases) >= f.failAt {
		return f.err
	}
	return nil
}

func TestFlash_EraseChunking(t *testing.T) {
	tests := []struct {
		name      string
		eraseSize int
		from, to  uint32
		expected  [][2]uint32
	}{
		{
			name:      "aligned range",
			eraseSize: 128,
			from:      0,
			to:        256,
			expected:  [][2]uint32{{0, 128}, {128, 256}},
		},
		{
			name:      "trailing partial unit",
			eraseSize: 128,
			from:      0,
			to:        257,
			expected:  [][2]uint32{{0, 128}, {128, 256}, {256, 257}},
		},
		{
			name:      "single short range",
			eraseSize: 128,
			from:      0,
			to:        100,
			expected:  [][2]uint32{{0, 100}},
		},
		{
			name:      "single full unit mid device",
			eraseSize: 128,
			from:      128,
			to:        256,
			expected:  [][2]uint32{{128, 256}},
		},
		{
			name:      "empty range",
			eraseSize: 128,
			from:      64,
			to:        64,
			expected:  nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &fakeFlash{eraseSize: test.eraseSize}
			sched := &countingYielder{}
			dev := WrapFlash(fake, sched)

			err := dev.Erase(context.Background(), test.from, test.to)
			require.NoError(t, err)

			fake = dev.Unwrap()
			assert.Equal(t, test.expected, fake.erases)
			assert.Equal(t, len(test.expected), sched.yields, "one yield per erase unit")
		})
	}
}

func TestFlash_EraseAbortsOnFailure(t *testing.T) {
	boom := errors.New("erase failed")
	tests := []struct {
		name          string
		failAt        int
		expectedCalls int
	}{
		{name: "first unit fails", failAt: 1, expectedCalls: 1},
		{name: "second unit fails", failAt: 2, expectedCalls: 2},
		{name: "last unit fails", failAt: 4, expectedCalls: 4},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &fakeFlash{eraseSize: 128, failAt: test.failAt, err: boom}
			sched := &countingYielder{}
			dev := WrapFlash(fake, sched)

			err := dev.Erase(context.Background(), 0, 512)
			require.ErrorIs(t, err, boom)

			assert.Len(t, fake.erases, test.expectedCalls, "no calls after the failing unit")
			assert.Equal(t, test.expectedCalls-1, sched.yields, "no yield on the failure path")
		})
	}
}

func TestFlash_WriteYieldsOnceOnSuccess(t *testing.T) {
	fake := &fakeFlash{eraseSize: 128}
	sched := &countingYielder{}
	dev := WrapFlash(fake, sched)

	err := dev.Write(context.Background(), 0x40, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x40}, fake.writes)
	assert.Equal(t, 1, sched.yields)
}

func TestFlash_WriteFailureDoesNotYield(t *testing.T) {
	boom := errors.New("write failed")
	fake := &fakeFlash{eraseSize: 128, err: boom}
	sched := &countingYielder{}
	dev := WrapFlash(fake, sched)

	err := dev.Write(context.Background(), 0, []byte{1})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, sched.yields)
}

func TestFlash_ReadDoesNotYield(t *testing.T) {
	fake := &fakeFlash{eraseSize: 128}
	sched := &countingYielder{}
	dev := WrapFlash(fake, sched)

	err := dev.Read(context.Background(), 0x10, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x10}, fake.reads)
	assert.Zero(t, sched.yields, "storage reads are forwarded without a yield point")
}

func TestFlash_ForwardsGeometry(t *testing.T) {
	fake := &fakeFlash{eraseSize: 4096, capacity: 1 << 20}
	dev := WrapFlash(fake, nil)

	assert.Equal(t, fake.ReadSize(), dev.ReadSize())
	assert.Equal(t, fake.WriteSize(), dev.WriteSize())
	assert.Equal(t, fake.EraseSize(), dev.EraseSize())
	assert.Equal(t, fake.Capacity(), dev.Capacity())
}

func TestFlash_UnwrapRecoversWrappedDevice(t *testing.T) {
	fake := &fakeFlash{eraseSize: 128}
	dev := WrapFlash(fake, &countingYielder{})

	require.NoError(t, dev.Erase(context.Background(), 0, 128))

	recovered := dev.Unwrap()
	assert.Same(t, fake, recovered)
	assert.Equal(t, [][2]uint32{{0, 128}}, recovered.erases)
}
