package spi

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/yieldbus"
)

var _ yieldbus.SPIBus = &GenericBus{}

// GenericBus exposes a host SPI port (periph.io) through the yieldbus
// transport interface. Host-side kernel drivers flush each transfer before
// returning, so Flush is a no-op.
type GenericBus struct {
	port spi.PortCloser
	conn spi.Conn
}

func NewGenericBus(dev string, speed physic.Frequency, mode spi.Mode) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open spi port: %w", err)
	}
	conn, err := port.Connect(speed, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not connect to spi device: %w", err)
	}
	return &GenericBus{
		port: port,
		conn: conn,
	}, nil
}

func (b *GenericBus) Transfer(ctx context.Context, read, write []byte) error {
	err := b.conn.Tx(write, read)
	if err != nil {
		return fmt.Errorf("spi transfer failed: %w", err)
	}
	return nil
}

func (b *GenericBus) TransferInPlace(ctx context.Context, words []byte) error {
	err := b.conn.Tx(words, words)
	if err != nil {
		return fmt.Errorf("spi in-place transfer failed: %w", err)
	}
	return nil
}

func (b *GenericBus) Read(ctx context.Context, buffer []byte) error {
	err := b.conn.Tx(nil, buffer)
	if err != nil {
		return fmt.Errorf("spi read failed: %w", err)
	}
	return nil
}

func (b *GenericBus) Write(ctx context.Context, buffer []byte) error {
	err := b.conn.Tx(buffer, nil)
	if err != nil {
		return fmt.Errorf("spi write failed: %w", err)
	}
	return nil
}

func (b *GenericBus) Flush(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.port.Close()
}
