package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/yieldbus"
)

var _ yieldbus.I2CBus = &GenericBus{}

// GenericBus exposes a host I2C bus (periph.io) through the yieldbus
// transport interface.
type GenericBus struct {
	bus i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &GenericBus{
		bus: bus,
	}, nil
}

func (b *GenericBus) SetSpeed(freq physic.Frequency) error {
	return b.bus.SetSpeed(freq)
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteReadFromAddr(ctx context.Context, address byte, w, r []byte) error {
	err := b.bus.Tx(uint16(address), w, r)
	if err != nil {
		return fmt.Errorf("could not write-read on i2c bus %x: %w", address, err)
	}
	return nil
}

// Transaction runs the steps back to back. A step that both writes and reads
// maps to a single Tx with a repeated start; pure reads and writes map to
// half-duplex transfers.
func (b *GenericBus) Transaction(ctx context.Context, address byte, ops []yieldbus.Operation) error {
	for i, op := range ops {
		err := b.bus.Tx(uint16(address), op.Write, op.Read)
		if err != nil {
			return fmt.Errorf("transaction step %d on i2c bus %x failed: %w", i, address, err)
		}
	}
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
