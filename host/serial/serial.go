// Package serial opens the link to the ee24 firmware.
package serial

import (
	"errors"
	"io"
)

// ErrNoDevice is returned when no device path is configured.
var ErrNoDevice = errors.New("serial: no device given")

// Port is an open link to the firmware.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output.
	Flush() error
}

// Config holds serial port settings.
type Config struct {
	// Device path, e.g. /dev/ttyACM0 or COM3
	Device string

	// Baud is ignored by USB CDC links but required by UARTs.
	Baud int

	// ReadTimeout in milliseconds; 0 blocks.
	ReadTimeout int
}

// DefaultConfig returns settings for the firmware's USB CDC link.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}

// timeoutRead turns the io.EOF a timed out read reports into an empty
// read, so callers only see EOF when the port goes away.
func timeoutRead(n int, err error, timeout int) (int, error) {
	if n == 0 && err == io.EOF && timeout > 0 {
		return 0, nil
	}
	return n, err
}
