package eeprom

import (
	"errors"
	"strconv"

	"ee24/i2c"
)

var (
	// ErrUnsupportedCapacity signals a capacity outside the 24CXX classes.
	ErrUnsupportedCapacity = errors.New("eeprom: unsupported capacity")

	// ErrInvalidAddress signals a bus address that does not fit 7 bits.
	ErrInvalidAddress = errors.New("eeprom: invalid bus address")

	// ErrInvalidRange signals an offset/length pair reaching past the
	// addressable space of the device.
	ErrInvalidRange = errors.New("eeprom: range outside addressable space")
)

// Bus primitive names reported in TransportError.Op.
const (
	OpStartWrite = "start write"
	OpStartRead  = "start read"
	OpWrite      = "write"
	OpRead       = "read"
	OpStop       = "stop"
)

// TransportError reports a failed bus primitive.
type TransportError struct {
	Op      string      // bus primitive that failed
	Address i2c.Address // select address of the failing transaction
	Offset  int         // memory offset the failing transaction started at

	// Committed is the number of payload bytes known to be transferred
	// before the failure. For writes this counts only pages whose
	// transaction was closed successfully; bytes of the failing page may
	// or may not have been stored by the device. For reads it counts the
	// bytes received.
	Committed int

	Err error
}

func (e *TransportError) Error() string {
	return "eeprom: " + e.Op + " at device 0x" + strconv.FormatUint(uint64(e.Address), 16) +
		" offset " + strconv.Itoa(e.Offset) + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
