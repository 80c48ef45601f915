// Package yieldbus defines transport capabilities for peripheral drivers
// (two-wire I2C buses, four-wire SPI buses and byte-addressable flash
// storage) together with a cooperative scheduling primitive. The yielding
// package wraps any driver implementing these capabilities so that control
// is handed back to the scheduler between consecutive operations.
package yieldbus

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("bus engine is busy (command not completed)")

// Operation is a single step of a multi-step I2C transaction. Exactly one of
// Write or Read should be set; a step with both set writes first, then reads.
type Operation struct {
	Write []byte
	Read  []byte
}

// I2CBus is a two-wire bus capability. Implementations transfer whole
// messages to a 7-bit device address.
type I2CBus interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	// WriteReadFromAddr writes w and reads into r within a single bus
	// transaction (repeated start, no stop in between).
	WriteReadFromAddr(ctx context.Context, address byte, w, r []byte) error
	// Transaction executes the given steps against the same address without
	// releasing the bus in between.
	Transaction(ctx context.Context, address byte, ops []Operation) error
}

// SPIBus is a four-wire bus capability.
type SPIBus interface {
	// Transfer clocks write out while filling read. Buffers must be of equal
	// length; either may be nil for a half-duplex transfer.
	Transfer(ctx context.Context, read, write []byte) error
	// TransferInPlace clocks words out and overwrites them with the words
	// read back.
	TransferInPlace(ctx context.Context, words []byte) error
	Read(ctx context.Context, buffer []byte) error
	Write(ctx context.Context, buffer []byte) error
	// Flush blocks until all queued words have been clocked out.
	Flush(ctx context.Context) error
}

// Flash is a byte-addressable non-volatile storage capability. ReadSize,
// WriteSize and EraseSize report the device granularity in bytes; Capacity
// reports total size. Erase operates on the address range [from, to).
type Flash interface {
	ReadSize() int
	WriteSize() int
	EraseSize() int
	Capacity() int
	Read(ctx context.Context, offset uint32, buffer []byte) error
	Write(ctx context.Context, offset uint32, buffer []byte) error
	Erase(ctx context.Context, from, to uint32) error
}
