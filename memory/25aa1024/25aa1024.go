// Package eeprom provides a driver for the Microchip 25AA1024 1-Mbit SPI
// EEPROM implementing the yieldbus.Flash capability: byte reads and writes
// with automatic page handling and status polling, plus page-granular erase.
//
// Datasheet reference: Microchip 25AA1024 Serial EEPROM (Table 3-1
// Instruction Set, page size 256 bytes).
//
// Tested on NanoPi using the Gobot sysfs SPI adaptor, but should work on any
// board that exposes a compliant spi.Connection. Wrap the driver in
// yielding.WrapFlash to keep long erases from starving co-scheduled tasks.
package eeprom

import (
	"context"
	"fmt"
	"time"

	"gobot.io/x/gobot/v2/drivers/spi"

	"github.com/mklimuk/yieldbus"
)

// device constants (datasheet Table 3-1)
const (
	cmdRead  = 0x03 // READ
	cmdWrite = 0x02 // WRITE
	cmdWREN  = 0x06 // WREN (Write-Enable Latch set)
	cmdRDSR  = 0x05 // Read STATUS Register
	cmdPE    = 0x42 // Page Erase

	statusWIP = 0x01 // STATUS bit 0 - Write-In-Progress

	pageSize = 256    // bytes per page, also the erase unit
	capacity = 131072 // 1 Mbit = 128 KiB total bytes

	// internal write/erase cycle is 6 ms max per datasheet
	cycleTimeout = 10 * time.Millisecond
)

var _ yieldbus.Flash = &EEPROM25AA1024{}

// EEPROM25AA1024 drives the 25AA1024 device over a Gobot SPI connection.
type EEPROM25AA1024 struct {
	*spi.Driver
}

// New returns a new driver bound to a Gobot SPI adaptor. bus and cs are the
// SPI bus number and chip-select line, matching the board's numbering.
// Additional driver options (e.g. speed) may be supplied as in other Gobot
// SPI drivers.
func New(adaptor spi.Connector, bus string, cs byte, opts ...func(spi.Config)) *EEPROM25AA1024 {
	d := spi.NewDriver(adaptor, bus, opts...)

	// datasheet limits: mode 0 (CPOL=0, CPHA=0) up to 20 MHz
	d.SetMode(0)

	if d.GetSpeedOrDefault(0) == 0 {
		d.SetSpeed(5_000_000) // conservative default 5 MHz
	}

	return &EEPROM25AA1024{Driver: d}
}

// Start establishes the SPI bus. Required by the Gobot driver interface.
func (e *EEPROM25AA1024) Start() error { return e.Driver.Start() }

// Halt releases the bus. Optional.
func (e *EEPROM25AA1024) Halt() error { return e.Driver.Halt() }

// The device is byte addressable for both reads and writes; erase operates
// on whole pages.
func (e *EEPROM25AA1024) ReadSize() int  { return 1 }
func (e *EEPROM25AA1024) WriteSize() int { return 1 }
func (e *EEPROM25AA1024) EraseSize() int { return pageSize }
func (e *EEPROM25AA1024) Capacity() int  { return capacity }

// Read fills buffer with bytes starting at offset. Reads that exceed the
// device's capacity return an error.
func (e *EEPROM25AA1024) Read(ctx context.Context, offset uint32, buffer []byte) error {
	if offset+uint32(len(buffer)) > capacity {
		return fmt.Errorf("read out of range")
	}
	// command + 24-bit address (A16..A0 used, seven MSB are "don't care")
	header := []byte{cmdRead, byte(offset >> 16), byte(offset >> 8), byte(offset)}

	tx := append(header, make([]byte, len(buffer))...) // dummy bytes clock out data
	rx := make([]byte, len(tx))

	if err := e.transfer(tx, rx); err != nil {
		return err
	}
	copy(buffer, rx[len(header):]) // skip echoed header
	return nil
}

// Write writes buffer at offset. It automatically pages data into <=256-byte
// chunks, as required by the device, and polls the STATUS register until each
// internal write cycle completes.
func (e *EEPROM25AA1024) Write(ctx context.Context, offset uint32, buffer []byte) error {
	if offset+uint32(len(buffer)) > capacity {
		return fmt.Errorf("write out of range")
	}
	for len(buffer) > 0 {
		space := pageSize - offset%pageSize
		chunk := buffer
		if uint32(len(chunk)) > space {
			chunk = chunk[:space]
		}
		if err := e.pageWrite(offset, chunk); err != nil {
			return err
		}
		offset += uint32(len(chunk))
		buffer = buffer[len(chunk):]
	}
	return nil
}

// Erase erases the address range [from, to). Both bounds must be aligned to
// the 256-byte page size; each page is erased with a separate PE instruction
// followed by a status poll.
func (e *EEPROM25AA1024) Erase(ctx context.Context, from, to uint32) error {
	if from%pageSize != 0 || to%pageSize != 0 {
		return fmt.Errorf("erase range %#x-%#x not page aligned", from, to)
	}
	if to > capacity || from > to {
		return fmt.Errorf("erase out of range")
	}
	for addr := from; addr < to; addr += pageSize {
		if err := e.pageErase(addr); err != nil {
			return err
		}
	}
	return nil
}

// transfer performs a full-duplex SPI transaction.
//
// Semantics follow the typical SPI rules:
//   - If rx is non-nil, it must be the length of tx. Received bytes are
//     written into rx.
//   - If rx is nil, received bytes are discarded.
//
// The Gobot SPI connection is half duplex, so the full-duplex buffer is
// emulated: the echo of the command header is undefined and callers skip it.
func (e *EEPROM25AA1024) transfer(tx []byte, rx []byte) error {
	if e == nil || e.Driver == nil {
		return fmt.Errorf("spi driver not initialized")
	}
	conn := e.Driver.Connection()
	type spiOps interface {
		ReadCommandData(command []byte, data []byte) error
		WriteBytes(data []byte) error
	}
	ops, ok := conn.(spiOps)
	if !ok {
		return fmt.Errorf("spi connection does not support required operations")
	}

	// write-only transaction
	if len(rx) == 0 {
		if len(tx) == 0 {
			return nil
		}
		return ops.WriteBytes(tx)
	}

	if len(tx) != len(rx) {
		return fmt.Errorf("tx/rx length mismatch: %d != %d", len(tx), len(rx))
	}

	// split the header from the dummy data bytes so ReadCommandData can be
	// used; READ carries a 24-bit address after the opcode
	headerLen := 1
	if tx[0] == cmdRead {
		headerLen = 4
	}
	if headerLen > len(tx) {
		headerLen = len(tx)
	}
	tmp := make([]byte, len(tx)-headerLen)
	if err := ops.ReadCommandData(tx[:headerLen], tmp); err != nil {
		return err
	}
	copy(rx[:headerLen], make([]byte, headerLen))
	copy(rx[headerLen:], tmp)
	return nil
}

func (e *EEPROM25AA1024) writeEnable() error {
	return e.transfer([]byte{cmdWREN}, nil)
}

func (e *EEPROM25AA1024) readStatus() (byte, error) {
	rx := make([]byte, 2)
	if err := e.transfer([]byte{cmdRDSR, 0x00}, rx); err != nil {
		return 0, err
	}
	return rx[1], nil
}

func (e *EEPROM25AA1024) waitUntilReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := e.readStatus()
		if err != nil {
			return err
		}
		if st&statusWIP == 0 {
			return nil
		}
		time.Sleep(500 * time.Microsecond)
	}
	return fmt.Errorf("timeout waiting for write completion")
}

func (e *EEPROM25AA1024) pageWrite(address uint32, data []byte) error {
	if len(data) == 0 || len(data) > pageSize {
		return fmt.Errorf("invalid page size")
	}
	if err := e.writeEnable(); err != nil {
		return err
	}

	header := []byte{cmdWrite, byte(address >> 16), byte(address >> 8), byte(address)}
	tx := append(header, data...)

	if err := e.transfer(tx, nil); err != nil {
		return err
	}
	return e.waitUntilReady(cycleTimeout)
}

func (e *EEPROM25AA1024) pageErase(address uint32) error {
	if err := e.writeEnable(); err != nil {
		return err
	}
	tx := []byte{cmdPE, byte(address >> 16), byte(address >> 8), byte(address)}
	if err := e.transfer(tx, nil); err != nil {
		return err
	}
	return e.waitUntilReady(cycleTimeout)
}
