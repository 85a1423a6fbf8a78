package eeprom

import (
	"errors"
	"io"
	"sync"

	"ee24/i2c"
)

// Chip binds a Device to the master it sits on and serializes access, so
// one Chip may be shared between goroutines. Chips sharing a master must
// also share a lock; use one Chip per master in that case or lock above.
//
// Chip implements io.ReaderAt and io.WriterAt over the addressable space.
type Chip struct {
	mu  sync.Mutex
	bus i2c.Master
	dev Device
}

// NewChip returns a Chip for dev on bus.
func NewChip(bus i2c.Master, dev Device) *Chip {
	return &Chip{bus: bus, dev: dev}
}

// Device returns the chip's device descriptor.
func (c *Chip) Device() Device { return c.dev }

// Size returns the addressable size in bytes.
func (c *Chip) Size() int64 { return int64(c.dev.Size()) }

// ReadAt reads len(p) bytes at off. Reads running past the end return the
// available bytes and io.EOF.
func (c *Chip) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrInvalidRange
	}
	size := c.Size()
	if off >= size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	var eof error
	if int64(len(p)) > size-off {
		p = p[:size-off]
		eof = io.EOF
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ReadInto(c.bus, c.dev, uint16(off), p); err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			return terr.Committed, err
		}
		return 0, err
	}
	return len(p), eof
}

// WriteAt writes p at off. A range reaching past the end is rejected
// before any transaction with ErrInvalidRange.
func (c *Chip) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > c.Size() || int64(len(p)) > c.Size()-off {
		return 0, ErrInvalidRange
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := Write(c.bus, c.dev, uint16(off), p); err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			return terr.Committed, err
		}
		return 0, err
	}
	return len(p), nil
}
