package sim

import (
	"sync"

	"ee24/i2c"
)

// Bus connects several simulated chips to one master. Each transaction is
// routed to the chip answering the select address.
type Bus struct {
	chips  []*Chip
	active *Chip
}

// Attach connects c to the bus.
func (b *Bus) Attach(c *Chip) {
	b.chips = append(b.chips, c)
}

func (b *Bus) find(addr i2c.Address) *Chip {
	for _, c := range b.chips {
		if c.matches(addr) {
			return c
		}
	}
	return nil
}

func (b *Bus) start(addr i2c.Address, read bool) error {
	if b.active != nil {
		return ErrProtocol
	}
	c := b.find(addr)
	if c == nil {
		return i2c.ErrNoDevice
	}

	var err error
	if read {
		err = c.StartRead(addr)
	} else {
		err = c.StartWrite(addr)
	}
	if err == nil {
		b.active = c
	}
	return err
}

func (b *Bus) StartWrite(addr i2c.Address) error { return b.start(addr, false) }

func (b *Bus) StartRead(addr i2c.Address) error { return b.start(addr, true) }

func (b *Bus) WriteByte(v byte) error {
	if b.active == nil {
		return ErrProtocol
	}
	return b.active.WriteByte(v)
}

func (b *Bus) ReadAck() (byte, error) {
	if b.active == nil {
		return 0, ErrProtocol
	}
	return b.active.ReadAck()
}

func (b *Bus) ReadNak() (byte, error) {
	if b.active == nil {
		return 0, ErrProtocol
	}
	return b.active.ReadNak()
}

func (b *Bus) Stop() error {
	if b.active == nil {
		return ErrProtocol
	}
	err := b.active.Stop()
	b.active = nil
	return err
}

// Board is a set of simulated buses keyed by controller number. It
// satisfies the firmware's I2C driver interface.
type Board struct {
	mu         sync.Mutex
	buses      map[i2c.BusID]*Bus
	configured map[i2c.BusID]uint32
}

// NewBoard returns a board with n empty buses.
func NewBoard(n int) *Board {
	b := &Board{
		buses:      make(map[i2c.BusID]*Bus),
		configured: make(map[i2c.BusID]uint32),
	}
	for i := 0; i < n; i++ {
		b.buses[i2c.BusID(i)] = &Bus{}
	}
	return b
}

// Bus returns bus id, or nil.
func (b *Board) Bus(id i2c.BusID) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buses[id]
}

// Frequency returns the rate bus id was configured with, 0 if never.
func (b *Board) Frequency(id i2c.BusID) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configured[id]
}

func (b *Board) ConfigureBus(id i2c.BusID, frequencyHz uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.buses[id]; !ok {
		return i2c.ErrNoBus
	}
	b.configured[id] = frequencyHz
	return nil
}

func (b *Board) Master(id i2c.BusID) (i2c.Master, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.buses[id]
	if !ok {
		return nil, i2c.ErrNoBus
	}
	return bus, nil
}
