package eeprom

import "ee24/i2c"

// Write stores data at consecutive offsets starting at offset.
//
// The range is split at page boundaries and every page is written in its
// own transaction: the device does not advance past a page boundary
// within one write and would wrap to the start of the page instead.
// An empty data slice issues no transaction.
//
// On a bus failure the error is a *TransportError; pages written before
// the failing one stay written.
func Write(bus i2c.Master, dev Device, offset uint16, data []byte) error {
	if dev.scheme.PageSize == 0 {
		return ErrUnsupportedCapacity
	}
	if len(data) == 0 {
		return nil
	}
	if err := dev.check(int(offset), len(data)); err != nil {
		return err
	}

	written := 0
	for written < len(data) {
		addr := int(offset) + written
		n := dev.pageSpan(addr, len(data)-written)

		if err := writePage(bus, dev, addr, data[written:written+n]); err != nil {
			err.Committed = written
			return err
		}
		written += n
	}

	return nil
}

// writePage runs one page write transaction. page must not cross a page
// boundary.
func writePage(bus i2c.Master, dev Device, addr int, page []byte) *TransportError {
	sel := dev.selectAddress(addr)

	if err := bus.StartWrite(sel); err != nil {
		return &TransportError{Op: OpStartWrite, Address: sel, Offset: addr, Err: err}
	}

	if err := dev.sendAddress(bus, addr); err != nil {
		return abort(bus, &TransportError{Op: OpWrite, Address: sel, Offset: addr, Err: err})
	}

	for _, b := range page {
		if err := bus.WriteByte(b); err != nil {
			return abort(bus, &TransportError{Op: OpWrite, Address: sel, Offset: addr, Err: err})
		}
	}

	if err := bus.Stop(); err != nil {
		return &TransportError{Op: OpStop, Address: sel, Offset: addr, Err: err}
	}
	return nil
}

// abort closes a transaction after a failed primitive so the bus is left
// idle. The stop error, if any, is dropped in favour of the original one.
func abort(bus i2c.Master, err *TransportError) *TransportError {
	_ = bus.Stop()
	return err
}
