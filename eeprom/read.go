package eeprom

import "ee24/i2c"

// Read returns count bytes starting at offset. A count of zero returns an
// empty slice without touching the bus.
func Read(bus i2c.Master, dev Device, offset uint16, count int) ([]byte, error) {
	if dev.scheme.PageSize == 0 {
		return nil, ErrUnsupportedCapacity
	}
	if count == 0 {
		return []byte{}, nil
	}
	if err := dev.check(int(offset), count); err != nil {
		return nil, err
	}
	p := make([]byte, count)
	if err := ReadInto(bus, dev, offset, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadInto fills p with the bytes starting at offset.
//
// The address pointer is set with a write transaction carrying only the
// memory address, then the whole range is fetched in one sequential read:
// the device advances its pointer across page boundaries while reading.
// Every byte but the last is acknowledged; the last is not, which tells
// the device to release the bus before the stop.
func ReadInto(bus i2c.Master, dev Device, offset uint16, p []byte) error {
	if dev.scheme.PageSize == 0 {
		return ErrUnsupportedCapacity
	}
	if len(p) == 0 {
		return nil
	}
	addr := int(offset)
	if err := dev.check(addr, len(p)); err != nil {
		return err
	}

	sel := dev.selectAddress(addr)

	if err := bus.StartWrite(sel); err != nil {
		return &TransportError{Op: OpStartWrite, Address: sel, Offset: addr, Err: err}
	}
	if err := dev.sendAddress(bus, addr); err != nil {
		return abort(bus, &TransportError{Op: OpWrite, Address: sel, Offset: addr, Err: err})
	}
	if err := bus.Stop(); err != nil {
		return &TransportError{Op: OpStop, Address: sel, Offset: addr, Err: err}
	}

	if err := bus.StartRead(sel); err != nil {
		return &TransportError{Op: OpStartRead, Address: sel, Offset: addr, Err: err}
	}

	last := len(p) - 1
	for i := 0; i < last; i++ {
		b, err := bus.ReadAck()
		if err != nil {
			return abort(bus, &TransportError{Op: OpRead, Address: sel, Offset: addr, Committed: i, Err: err})
		}
		p[i] = b
	}

	b, err := bus.ReadNak()
	if err != nil {
		return abort(bus, &TransportError{Op: OpRead, Address: sel, Offset: addr, Committed: last, Err: err})
	}
	p[last] = b

	if err := bus.Stop(); err != nil {
		return &TransportError{Op: OpStop, Address: sel, Offset: addr, Committed: len(p), Err: err}
	}
	return nil
}
