// Package i2c defines the byte-level two-wire bus master that the EEPROM
// engine drives, together with adapters for concrete buses.
package i2c

import "errors"

// Address is a 7-bit I2C device address. The datasheet select byte 0xA0
// corresponds to Address 0x50.
type Address uint8

// MaxAddress is the highest valid 7-bit address.
const MaxAddress Address = 0x7F

// BusID identifies a bus controller on the board (I2C0, I2C1, ...).
type BusID uint8

var (
	// ErrNACK signals that the addressed device did not acknowledge a byte.
	ErrNACK = errors.New("NACK received")

	// ErrNoDevice signals that no device responded with an ACK at the
	// requested address.
	ErrNoDevice = errors.New("no such device")

	// ErrNoBus signals a bus controller the board does not have.
	ErrNoBus = errors.New("no such bus")

	// ErrBusy signals that a transaction is already open on the master.
	ErrBusy = errors.New("bus busy")

	// ErrNotStarted signals a byte operation or stop without an open
	// transaction of the matching direction.
	ErrNotStarted = errors.New("no transaction in progress")
)

// Master is the abstract byte-level I2C interface the EEPROM engine uses.
// Every call blocks until the bus operation completes.
type Master interface {
	// StartWrite issues a start condition followed by the select byte for
	// addr in write mode. If it returns an error the master has already
	// released the bus; no Stop is required.
	StartWrite(addr Address) error

	// StartRead is StartWrite in read mode.
	StartRead(addr Address) error

	// WriteByte transmits one byte on an open write transaction.
	WriteByte(b byte) error

	// ReadAck receives one byte and acknowledges it, asking the device
	// to continue the sequence.
	ReadAck() (byte, error)

	// ReadNak receives one byte without acknowledging it, ending the
	// device's sequential read.
	ReadNak() (byte, error)

	// Stop issues a stop condition and leaves the bus idle.
	Stop() error
}
