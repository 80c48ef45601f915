package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/drivers/spi"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/yieldbus"
	"github.com/mklimuk/yieldbus/cmd/yieldbus/console"
	eeprom "github.com/mklimuk/yieldbus/memory/25aa1024"
	"github.com/mklimuk/yieldbus/yielding"
)

var flashCmd = cli.Command{
	Name:    "flash",
	Aliases: []string{"mem"},
	Usage:   "flash storage operations through the yielding adapter",
	Subcommands: []*cli.Command{
		&flashReadCmd,
		&flashWriteCmd,
		&flashEraseCmd,
	},
}

func openFlash(c *cli.Context) (yieldbus.Flash, func(), error) {
	adaptor := nanopi.NewNeoAdaptor()
	dev := eeprom.New(adaptor, config.Flash.Bus, config.Flash.ChipSel,
		spi.WithSpeed(int64(config.Flash.SpeedMHz)*1_000_000))
	if err := dev.Start(); err != nil {
		return nil, nil, fmt.Errorf("SPI device start error: %w", err)
	}
	return yielding.WrapFlash[yieldbus.Flash](dev, nil), func() { _ = dev.Halt() }, nil
}

var flashReadCmd = cli.Command{
	Name:  "read",
	Usage: "read flash memory",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "address", Usage: "memory address to read", Required: true},
		&cli.IntFlag{Name: "length", Usage: "number of bytes to read", Value: 16},
	},
	Action: func(c *cli.Context) error {
		dev, halt, err := openFlash(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer halt()
		addr := c.Int("address")
		length := c.Int("length")
		if addr < 0 || addr+length > dev.Capacity() {
			return console.Exit(1, "address out of range: %d", addr)
		}
		buf := make([]byte, length)
		err = dev.Read(context.Background(), uint32(addr), buf)
		if err != nil {
			return console.Exit(1, "flash read error: %s", console.Red(err))
		}
		console.Print(hex.Dump(buf))
		return nil
	},
}

var flashWriteCmd = cli.Command{
	Name:  "write",
	Usage: "write flash memory",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "address", Usage: "memory address to write", Required: true},
		&cli.StringFlag{Name: "data", Usage: "hex bytes to write (e.g. '01FF23')", Required: true},
	},
	Action: func(c *cli.Context) error {
		data, err := hex.DecodeString(c.String("data"))
		if err != nil {
			return console.Exit(1, "invalid data hex string: %s", console.Red(err))
		}
		dev, halt, err := openFlash(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer halt()
		addr := c.Int("address")
		if addr < 0 || addr+len(data) > dev.Capacity() {
			return console.Exit(1, "address out of range: %d", addr)
		}
		err = dev.Write(context.Background(), uint32(addr), data)
		if err != nil {
			return console.Exit(1, "flash write error: %s", console.Red(err))
		}
		console.Printf("wrote %d bytes at %#05x\n", len(data), addr)
		return nil
	},
}

var flashEraseCmd = cli.Command{
	Name:  "erase",
	Usage: "erase a flash address range (erase-unit aligned)",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "from", Usage: "start address (inclusive)", Required: true},
		&cli.IntFlag{Name: "to", Usage: "end address (exclusive)", Required: true},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip confirmation"},
	},
	Action: func(c *cli.Context) error {
		dev, halt, err := openFlash(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer halt()
		from := c.Int("from")
		to := c.Int("to")
		if from < 0 || to > dev.Capacity() || from > to {
			return console.Exit(1, "erase range out of bounds: %#x-%#x", from, to)
		}
		if !c.Bool("yes") {
			answer, err := console.YesOrNo(fmt.Sprintf("erase %d bytes at %#05x-%#05x?", to-from, from, to))
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			if answer != console.Yes {
				console.Print("aborted")
				return nil
			}
		}
		// the yielding adapter splits the range into per-unit erases and
		// yields between them
		err = dev.Erase(context.Background(), uint32(from), uint32(to))
		if err != nil {
			return console.Exit(1, "flash erase error: %s", console.Red(err))
		}
		console.Printf("erased %#05x-%#05x\n", from, to)
		return nil
	},
}
