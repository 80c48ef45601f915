package yielding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/yieldbus"
)

// MockI2CBus is a mock implementation of yieldbus.I2CBus using testify/mock.
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) WriteReadFromAddr(ctx context.Context, address byte, w, r []byte) error {
	args := m.Called(ctx, address, w, r)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(r) {
		copy(r, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Transaction(ctx context.Context, address byte, ops []yieldbus.Operation) error {
	args := m.Called(ctx, address, ops)
	return args.Error(0)
}

func TestI2C_YieldsOnceAfterEachOperation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		setupMock func(*MockI2CBus)
		operation func(*I2C[*MockI2CBus]) error
	}{
		{
			name: "read",
			setupMock: func(bus *MockI2CBus) {
				bus.On("ReadFromAddr", mock.Anything, byte(0x1A), mock.Anything).
					Return([]byte{0xAB, 0xCD}, nil).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				buf := make([]byte, 2)
				if err := b.ReadFromAddr(ctx, 0x1A, buf); err != nil {
					return err
				}
				assert.Equal(t, []byte{0xAB, 0xCD}, buf)
				return nil
			},
		},
		{
			name: "write",
			setupMock: func(bus *MockI2CBus) {
				bus.On("WriteToAddr", mock.Anything, byte(0x1A), []byte{0x01, 0x02}).
					Return(nil).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				return b.WriteToAddr(ctx, 0x1A, []byte{0x01, 0x02})
			},
		},
		{
			name: "write-read",
			setupMock: func(bus *MockI2CBus) {
				bus.On("WriteReadFromAddr", mock.Anything, byte(0x48), []byte{0x00}, mock.Anything).
					Return([]byte{0x7F}, nil).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				r := make([]byte, 1)
				if err := b.WriteReadFromAddr(ctx, 0x48, []byte{0x00}, r); err != nil {
					return err
				}
				assert.Equal(t, []byte{0x7F}, r)
				return nil
			},
		},
		{
			name: "transaction",
			setupMock: func(bus *MockI2CBus) {
				bus.On("Transaction", mock.Anything, byte(0x50), mock.Anything).
					Return(nil).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				return b.Transaction(ctx, 0x50, []yieldbus.Operation{
					{Write: []byte{0x00, 0x10}},
					{Read: make([]byte, 4)},
				})
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := new(MockI2CBus)
			sched := &countingYielder{}
			test.setupMock(bus)

			wrapped := WrapI2C(bus, sched)
			err := test.operation(wrapped)

			require.NoError(t, err)
			assert.Equal(t, 1, sched.yields, "exactly one yield per successful operation")
			bus.AssertExpectations(t)
		})
	}
}

func TestI2C_FailurePropagatesWithoutYield(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("i2c write failed")
	tests := []struct {
		name      string
		setupMock func(*MockI2CBus)
		operation func(*I2C[*MockI2CBus]) error
	}{
		{
			name: "read",
			setupMock: func(bus *MockI2CBus) {
				bus.On("ReadFromAddr", mock.Anything, byte(0x1A), mock.Anything).
					Return(nil, boom).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				return b.ReadFromAddr(ctx, 0x1A, make([]byte, 2))
			},
		},
		{
			name: "write",
			setupMock: func(bus *MockI2CBus) {
				bus.On("WriteToAddr", mock.Anything, byte(0x1A), mock.Anything).
					Return(boom).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				return b.WriteToAddr(ctx, 0x1A, []byte{0x01})
			},
		},
		{
			name: "write-read",
			setupMock: func(bus *MockI2CBus) {
				bus.On("WriteReadFromAddr", mock.Anything, byte(0x48), mock.Anything, mock.Anything).
					Return(nil, boom).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				return b.WriteReadFromAddr(ctx, 0x48, []byte{0x00}, make([]byte, 1))
			},
		},
		{
			name: "transaction",
			setupMock: func(bus *MockI2CBus) {
				bus.On("Transaction", mock.Anything, byte(0x50), mock.Anything).
					Return(boom).Once()
			},
			operation: func(b *I2C[*MockI2CBus]) error {
				return b.Transaction(ctx, 0x50, []yieldbus.Operation{{Write: []byte{0x00}}})
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := new(MockI2CBus)
			sched := &countingYielder{}
			test.setupMock(bus)

			wrapped := WrapI2C(bus, sched)
			err := test.operation(wrapped)

			// the wrapped driver's error comes back untouched
			assert.Same(t, boom, err)
			assert.Zero(t, sched.yields, "no yield on the failure path")
			bus.AssertExpectations(t)
		})
	}
}

func TestI2C_DefaultsToGoschedYielder(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x1A), mock.Anything).Return(nil).Once()

	wrapped := WrapI2C(bus, nil)
	err := wrapped.WriteToAddr(context.Background(), 0x1A, []byte{0x01})

	require.NoError(t, err)
	bus.AssertExpectations(t)
}

func TestI2C_UnwrapRecoversWrappedBus(t *testing.T) {
	bus := new(MockI2CBus)
	wrapped := WrapI2C(bus, &countingYielder{})
	assert.Same(t, bus, wrapped.Unwrap())
}
