package main

import (
	"context"
	"encoding/hex"

	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/physic"
	periphspi "periph.io/x/conn/v3/spi"

	"github.com/mklimuk/yieldbus"
	"github.com/mklimuk/yieldbus/cmd/yieldbus/console"
	"github.com/mklimuk/yieldbus/spi"
	"github.com/mklimuk/yieldbus/yielding"
)

var spiCmd = cli.Command{
	Name: "spi",
	Subcommands: []*cli.Command{
		&spiTransferCmd,
	},
}

var spiTransferCmd = cli.Command{
	Name:    "transfer",
	Aliases: []string{"xfer"},
	Usage:   "full-duplex transfer on a host SPI port",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Usage:   "spi port name",
			Value:   "",
		},
		&cli.IntFlag{Name: "speed", Usage: "clock speed in kHz", Value: 1000},
		&cli.StringFlag{Name: "data", Usage: "hex bytes to clock out (e.g. '9F000000')", Required: true},
	},
	Action: func(c *cli.Context) error {
		data, err := hex.DecodeString(c.String("data"))
		if err != nil {
			return console.Exit(1, "invalid data hex string: %s", console.Red(err))
		}
		raw, err := spi.NewGenericBus(c.String("device"),
			physic.Frequency(c.Int("speed"))*physic.KiloHertz, periphspi.Mode0)
		if err != nil {
			return console.Exit(1, "port initialization error: %s", console.Red(err))
		}
		defer func() {
			if err := raw.Close(); err != nil {
				console.Errorf("error closing port: %s", console.Red(err))
			}
		}()
		bus := yielding.WrapSPI[yieldbus.SPIBus](raw, nil)
		err = bus.TransferInPlace(context.Background(), data)
		if err != nil {
			return console.Exit(1, "transfer error: %s", console.Red(err))
		}
		console.Print(hex.Dump(data))
		return nil
	},
}
