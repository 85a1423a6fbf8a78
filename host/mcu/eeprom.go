package mcu

import (
	"errors"
	"fmt"
	"io"

	"ee24/core"
	"ee24/eeprom"
	"ee24/i2c"
	"ee24/protocol"
)

var (
	// ErrBusError reports a failed bus transfer on the firmware side.
	ErrBusError = errors.New("eeprom: bus error")

	// ErrUnknownOID reports an oid that was never configured.
	ErrUnknownOID = errors.New("eeprom: unknown oid")

	// ErrTransferTooLarge reports a chunk above the firmware limit.
	ErrTransferTooLarge = errors.New("eeprom: transfer too large")
)

// StatusError maps a firmware status code back to an error.
func StatusError(status uint8) error {
	switch status {
	case core.StatusOK:
		return nil
	case core.StatusUnsupportedCapacity:
		return eeprom.ErrUnsupportedCapacity
	case core.StatusInvalidAddress:
		return eeprom.ErrInvalidAddress
	case core.StatusInvalidRange:
		return eeprom.ErrInvalidRange
	case core.StatusBusError:
		return ErrBusError
	case core.StatusUnknownOID:
		return ErrUnknownOID
	case core.StatusNoBus:
		return i2c.ErrNoBus
	case core.StatusTooLarge:
		return ErrTransferTooLarge
	default:
		return fmt.Errorf("eeprom: unknown status %d", status)
	}
}

// maxTransfer is the firmware's per command payload limit.
func (m *MCU) maxTransfer() int {
	if m.dictionary != nil {
		if n, ok := m.dictionary.ConfigInt("EEPROM_MAX_TRANSFER"); ok && n > 0 {
			return n
		}
	}
	return core.MaxTransfer
}

// ConfigEEPROM binds oid to the chip at addr on bus.
func (m *MCU) ConfigEEPROM(oid uint8, bus i2c.BusID, addr i2c.Address, c eeprom.Capacity) error {
	payload, err := m.Query("config_eeprom", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, uint32(bus))
		protocol.EncodeVLQUint(output, uint32(addr))
		protocol.EncodeVLQUint(output, uint32(c))
	}, "eeprom_status")
	if err != nil {
		return err
	}
	return statusReply(payload, oid)
}

func statusReply(payload []byte, oid uint8) error {
	v, err := decodeUints(&payload, 2)
	if err != nil {
		return err
	}
	if uint8(v[0]) != oid {
		return fmt.Errorf("status for oid %d, expected %d", v[0], oid)
	}
	return StatusError(uint8(v[1]))
}

// WriteEEPROM writes data in chunks the firmware accepts. On failure the
// error names the offset of the failing chunk; earlier chunks are stored.
func (m *MCU) WriteEEPROM(oid uint8, offset uint16, data []byte) error {
	_, err := m.writeChunks(oid, offset, data)
	return err
}

// writeChunks returns how many bytes were acknowledged before a failure.
func (m *MCU) writeChunks(oid uint8, offset uint16, data []byte) (int, error) {
	if int(offset)+len(data) > 1<<16 {
		return 0, eeprom.ErrInvalidRange
	}

	chunk := m.maxTransfer()
	for done := 0; done < len(data); done += chunk {
		end := done + chunk
		if end > len(data) {
			end = len(data)
		}
		off := int(offset) + done

		payload, err := m.Query("eeprom_write", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(oid))
			protocol.EncodeVLQUint(output, uint32(off))
			protocol.EncodeVLQBytes(output, data[done:end])
		}, "eeprom_status")
		if err == nil {
			err = statusReply(payload, oid)
		}
		if err != nil {
			return done, fmt.Errorf("eeprom write at offset %d: %w", off, err)
		}
	}
	return len(data), nil
}

// ReadEEPROM reads n bytes in chunks the firmware accepts.
func (m *MCU) ReadEEPROM(oid uint8, offset uint16, n int) ([]byte, error) {
	if n < 0 || int(offset)+n > 1<<16 {
		return nil, eeprom.ErrInvalidRange
	}

	out := make([]byte, 0, n)
	chunk := m.maxTransfer()
	for len(out) < n {
		count := n - len(out)
		if count > chunk {
			count = chunk
		}
		off := int(offset) + len(out)

		data, err := m.readChunk(oid, off, count)
		if err != nil {
			return out, fmt.Errorf("eeprom read at offset %d: %w", off, err)
		}
		out = append(out, data...)
	}
	return out, nil
}

func (m *MCU) readChunk(oid uint8, off, count int) ([]byte, error) {
	payload, err := m.Query("eeprom_read", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, uint32(off))
		protocol.EncodeVLQUint(output, uint32(count))
	}, "eeprom_read_response")
	if err != nil {
		return nil, err
	}

	v, err := decodeUints(&payload, 3)
	if err != nil {
		return nil, err
	}
	if uint8(v[0]) != oid || int(v[1]) != off {
		return nil, fmt.Errorf("reply for oid %d offset %d", v[0], v[1])
	}
	if err := StatusError(uint8(v[2])); err != nil {
		return nil, err
	}

	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, err
	}
	if len(data) != count {
		return nil, fmt.Errorf("short reply: %d of %d bytes", len(data), count)
	}
	return append([]byte(nil), data...), nil
}

// Remote is a chip behind the firmware, usable with io.SectionReader,
// io.Copy and friends.
type Remote struct {
	m    *MCU
	oid  uint8
	size int64
}

// Remote returns a handle for a configured oid of capacity c.
func (m *MCU) Remote(oid uint8, c eeprom.Capacity) (*Remote, error) {
	s, ok := c.Scheme()
	if !ok {
		return nil, eeprom.ErrUnsupportedCapacity
	}
	return &Remote{m: m, oid: oid, size: int64(s.Addressable())}, nil
}

func (r *Remote) Size() int64 {
	return r.size
}

// ReadAt follows io.ReaderAt: a read reaching the end is shortened and
// reports io.EOF.
func (r *Remote) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, eeprom.ErrInvalidRange
	}
	if off >= r.size {
		return 0, io.EOF
	}

	want := p
	if rest := r.size - off; int64(len(want)) > rest {
		want = want[:rest]
	}
	data, err := r.m.ReadEEPROM(r.oid, uint16(off), len(want))
	n := copy(p, data)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt rejects writes reaching past the end without writing anything.
// After a failure n counts the bytes of the chunks the firmware stored.
func (r *Remote) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > r.size {
		return 0, eeprom.ErrInvalidRange
	}
	return r.m.writeChunks(r.oid, uint16(off), p)
}
