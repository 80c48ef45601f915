package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/yieldbus"
	"github.com/mklimuk/yieldbus/adapter"
	"github.com/mklimuk/yieldbus/cmd/yieldbus/console"
	"github.com/mklimuk/yieldbus/i2c"
	"github.com/mklimuk/yieldbus/yielding"
)

var i2cCmd = cli.Command{
	Name: "i2c",
	Subcommands: []*cli.Command{
		&i2cReadCmd,
		&i2cWriteCmd,
	},
}

var i2cFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter (mcp2221 or generic)",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "host bus device (generic adapter only)",
	},
	&cli.IntFlag{Name: "addr", Usage: "7-bit device address", Required: true},
}

// openI2C builds the configured transport and hands it back wrapped in the
// yielding adapter, together with a close function for the underlying bus.
func openI2C(c *cli.Context) (yieldbus.I2CBus, func(), error) {
	name := c.String("adapter")
	if name == "" {
		name = config.I2C.Adapter
	}
	switch name {
	case "mcp2221":
		ad := adapter.NewMCP2221()
		if err := ad.Init(); err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return yielding.WrapI2C[yieldbus.I2CBus](ad, nil), func() { _ = ad.Close() }, nil
	case "generic", "nanopi":
		dev := c.String("device")
		if dev == "" {
			dev = config.I2C.Device
		}
		bus, err := i2c.NewGenericBus(dev)
		if err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		if err := bus.SetSpeed(physic.Frequency(config.I2C.SpeedkHz) * physic.KiloHertz); err != nil {
			_ = bus.Close()
			return nil, nil, fmt.Errorf("could not set bus speed: %w", err)
		}
		return yielding.WrapI2C[yieldbus.I2CBus](bus, nil), func() { _ = bus.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown adapter %q", name)
	}
}

var i2cReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "length", Usage: "number of bytes to read", Value: 1},
	}, i2cFlags...),
	Action: func(c *cli.Context) error {
		bus, closeBus, err := openI2C(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeBus()
		buf := make([]byte, c.Int("length"))
		err = bus.ReadFromAddr(context.Background(), byte(c.Int("addr")), buf)
		if err != nil {
			return console.Exit(1, "bus read error: %s", console.Red(err))
		}
		console.Print(hex.Dump(buf))
		return nil
	},
}

var i2cWriteCmd = cli.Command{
	Name:    "write",
	Aliases: []string{"wr"},
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "data", Usage: "hex bytes to write (e.g. '01FF23')", Required: true},
	}, i2cFlags...),
	Action: func(c *cli.Context) error {
		data, err := hex.DecodeString(c.String("data"))
		if err != nil {
			return console.Exit(1, "invalid data hex string: %s", console.Red(err))
		}
		bus, closeBus, err := openI2C(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeBus()
		err = bus.WriteToAddr(context.Background(), byte(c.Int("addr")), data)
		if err != nil {
			return console.Exit(1, "bus write error: %s", console.Red(err))
		}
		console.Printf("wrote %d bytes to %#x\n", len(data), c.Int("addr"))
		return nil
	},
}
