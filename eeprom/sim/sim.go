// Package sim provides a byte-level simulation of a 24CXX EEPROM that
// plugs into the engine as an i2c.Master. It follows the device rules the
// engine depends on: writes wrap inside the current page, reads advance
// across the whole array, and a read must end with a NAK before the stop.
//
// Protocol violations are reported as errors rather than being tolerated,
// so tests catch sequencing mistakes.
package sim

import (
	"errors"

	"ee24/eeprom"
	"ee24/i2c"
)

// ErrProtocol signals a bus sequence a real device would not accept.
var ErrProtocol = errors.New("sim: bus protocol violation")

type state uint8

const (
	stateIdle state = iota
	stateAddrHi
	stateAddrLo
	stateWriteData
	stateReadData
)

// Transaction records one completed start..stop sequence.
type Transaction struct {
	Select  i2c.Address
	Read    bool
	Address []byte // memory address bytes, write transactions only
	Data    []byte // payload written or bytes read
}

// Chip is a simulated EEPROM. Mem is exported so tests can preload and
// inspect the array directly.
type Chip struct {
	Mem []byte

	// Fault, when set, is consulted before every primitive with the
	// eeprom.Op* name of the primitive. A non-nil result is returned to
	// the caller and the primitive has no effect.
	Fault func(op string) error

	// Log holds every completed transaction in order.
	Log []Transaction

	base    i2c.Address
	mask    i2c.Address
	scheme  eeprom.Scheme
	state   state
	pointer int
	page    int // base offset of the page being written
	nakSent bool
	cur     Transaction
}

// New returns a blank (0xFF filled) chip answering at addr.
func New(addr i2c.Address, c eeprom.Capacity) (*Chip, error) {
	s, ok := c.Scheme()
	if !ok {
		return nil, eeprom.ErrUnsupportedCapacity
	}
	mask := i2c.Address(1)<<s.SelectBits - 1
	ch := &Chip{
		Mem:    make([]byte, s.Size),
		base:   addr &^ mask,
		mask:   mask,
		scheme: s,
	}
	for i := range ch.Mem {
		ch.Mem[i] = 0xff
	}
	return ch, nil
}

// Idle reports whether no transaction is open.
func (c *Chip) Idle() bool {
	return c.state == stateIdle
}

// Writes returns the logged write transactions that carried payload.
func (c *Chip) Writes() []Transaction {
	var out []Transaction
	for _, t := range c.Log {
		if !t.Read && len(t.Data) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func (c *Chip) fault(op string) error {
	if c.Fault == nil {
		return nil
	}
	return c.Fault(op)
}

func (c *Chip) matches(addr i2c.Address) bool {
	return addr&^c.mask == c.base
}

func (c *Chip) StartWrite(addr i2c.Address) error {
	if err := c.fault(eeprom.OpStartWrite); err != nil {
		return err
	}
	if c.state != stateIdle {
		return ErrProtocol
	}
	if !c.matches(addr) {
		return i2c.ErrNoDevice
	}

	c.cur = Transaction{Select: addr}
	if c.scheme.TwoByteAddress {
		c.state = stateAddrHi
	} else {
		c.state = stateAddrLo
		c.pointer = int(addr&c.mask) << 8
	}
	return nil
}

func (c *Chip) StartRead(addr i2c.Address) error {
	if err := c.fault(eeprom.OpStartRead); err != nil {
		return err
	}
	if c.state != stateIdle {
		return ErrProtocol
	}
	if !c.matches(addr) {
		return i2c.ErrNoDevice
	}

	// current address read: the select bits are ignored, the pointer
	// left by the previous transaction is used
	c.cur = Transaction{Select: addr, Read: true}
	c.state = stateReadData
	c.nakSent = false
	return nil
}

func (c *Chip) WriteByte(b byte) error {
	if err := c.fault(eeprom.OpWrite); err != nil {
		return err
	}

	switch c.state {
	case stateAddrHi:
		c.cur.Address = append(c.cur.Address, b)
		c.pointer = int(b) << 8
		c.state = stateAddrLo

	case stateAddrLo:
		c.cur.Address = append(c.cur.Address, b)
		c.pointer = (c.pointer | int(b)) % len(c.Mem)
		c.page = c.pointer &^ (c.scheme.PageSize - 1)
		c.state = stateWriteData

	case stateWriteData:
		c.cur.Data = append(c.cur.Data, b)
		c.Mem[c.pointer] = b
		// roll over inside the page, never into the next one
		c.pointer = c.page | (c.pointer+1)&(c.scheme.PageSize-1)

	default:
		return ErrProtocol
	}
	return nil
}

func (c *Chip) ReadAck() (byte, error) {
	return c.read(false)
}

func (c *Chip) ReadNak() (byte, error) {
	return c.read(true)
}

func (c *Chip) read(last bool) (byte, error) {
	if err := c.fault(eeprom.OpRead); err != nil {
		return 0, err
	}
	if c.state != stateReadData || c.nakSent {
		return 0, ErrProtocol
	}

	b := c.Mem[c.pointer]
	c.pointer = (c.pointer + 1) % len(c.Mem)
	c.cur.Data = append(c.cur.Data, b)
	c.nakSent = last
	return b, nil
}

func (c *Chip) Stop() error {
	if err := c.fault(eeprom.OpStop); err != nil {
		// the master gives up on the transaction either way
		c.cur = Transaction{}
		c.state = stateIdle
		return err
	}

	switch c.state {
	case stateIdle:
		return ErrProtocol
	case stateReadData:
		if len(c.cur.Data) > 0 && !c.nakSent {
			// the device still drives the bus after an ACKed byte
			c.state = stateIdle
			return ErrProtocol
		}
	}

	c.Log = append(c.Log, c.cur)
	c.cur = Transaction{}
	c.state = stateIdle
	return nil
}
