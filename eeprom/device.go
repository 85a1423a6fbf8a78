// Package eeprom drives 24CXX serial EEPROMs over a byte-level I2C master.
//
// A Device resolves its addressing scheme once at construction. Write
// splits a byte range into page-sized bus transactions, re-addressing the
// device at every page boundary; Read sets the address pointer once and
// streams the whole range in a single sequential read.
//
// The functions here never lock. Callers sharing one master between
// goroutines serialize access themselves or go through a Chip.
package eeprom

import "ee24/i2c"

// Device describes one EEPROM on the bus. The zero value is not usable;
// construct devices with New.
type Device struct {
	addr     i2c.Address
	capacity Capacity
	scheme   Scheme
}

// New returns a Device for the chip at addr with the given capacity class.
func New(addr i2c.Address, c Capacity) (Device, error) {
	s, ok := c.Scheme()
	if !ok {
		return Device{}, ErrUnsupportedCapacity
	}
	if addr > i2c.MaxAddress {
		return Device{}, ErrInvalidAddress
	}
	return Device{addr: addr, capacity: c, scheme: s}, nil
}

// Address returns the base bus address.
func (d Device) Address() i2c.Address { return d.addr }

// Capacity returns the capacity class.
func (d Device) Capacity() Capacity { return d.capacity }

// Scheme returns the resolved addressing scheme.
func (d Device) Scheme() Scheme { return d.scheme }

// Size returns the number of addressable bytes.
func (d Device) Size() int { return d.scheme.Addressable() }

// selectAddress returns the bus address for a transaction starting at
// offset. The scheme's select bits are cleared from the base address and
// replaced by the matching high bits of the offset.
func (d Device) selectAddress(offset int) i2c.Address {
	mask := i2c.Address(1)<<d.scheme.SelectBits - 1
	return d.addr&^mask | i2c.Address(offset>>8)&mask
}

// pageSpan returns how many of the remaining bytes fit in the page that
// contains offset.
func (d Device) pageSpan(offset, remaining int) int {
	n := d.scheme.PageSize - offset%d.scheme.PageSize
	if n > remaining {
		n = remaining
	}
	return n
}

// check validates an offset/length pair against the device.
func (d Device) check(offset, n int) error {
	if d.scheme.PageSize == 0 {
		return ErrUnsupportedCapacity
	}
	if n < 0 || offset < 0 || offset+n > d.scheme.Addressable() {
		return ErrInvalidRange
	}
	return nil
}

// sendAddress emits the memory address byte(s) for offset.
func (d Device) sendAddress(bus i2c.Master, offset int) error {
	if d.scheme.TwoByteAddress {
		if err := bus.WriteByte(byte(offset >> 8)); err != nil {
			return err
		}
	}
	return bus.WriteByte(byte(offset))
}
