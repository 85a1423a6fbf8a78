package i2c

import (
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// TxConfig tunes how a TxMaster waits for a device that is busy with an
// internal write cycle.
type TxConfig struct {
	// WriteCycle bounds how long a transfer is retried while the device
	// does not acknowledge its address (24CXX parts NACK during the
	// self-timed write cycle, typically 5ms).
	WriteCycle time.Duration

	// PollInterval is the pause between retries.
	PollInterval time.Duration
}

// DefaultTxConfig returns timings suitable for the whole 24CXX family.
func DefaultTxConfig() TxConfig {
	return TxConfig{
		WriteCycle:   10 * time.Millisecond,
		PollInterval: 500 * time.Microsecond,
	}
}

type txMode uint8

const (
	txIdle txMode = iota
	txWriting
	txReading
)

// TxMaster implements Master on top of a transaction-level bus such as
// machine.I2C (anything satisfying drivers.I2C).
//
// Bytes written between StartWrite and Stop are buffered and sent as a
// single Tx at Stop, so addressing errors surface there. Reads are issued
// as one current-address read per byte; 24CXX devices advance their
// internal pointer after every byte, so the result is identical to one
// sequential read, and the peripheral handles the final NAK itself.
type TxMaster struct {
	mu   sync.Mutex
	bus  drivers.I2C
	cfg  TxConfig
	mode txMode
	addr Address
	buf  []byte
	one  [1]byte
}

// NewTxMaster wraps bus. Zero fields in cfg are replaced by defaults.
func NewTxMaster(bus drivers.I2C, cfg TxConfig) *TxMaster {
	def := DefaultTxConfig()
	if cfg.WriteCycle == 0 {
		cfg.WriteCycle = def.WriteCycle
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &TxMaster{
		bus: bus,
		cfg: cfg,
		buf: make([]byte, 0, 258), // two address bytes + largest page
	}
}

// StartWrite opens a buffered write transaction.
func (m *TxMaster) StartWrite(addr Address) error {
	return m.start(addr, txWriting)
}

// StartRead opens a read transaction. The device's address pointer must
// already have been set by a preceding write.
func (m *TxMaster) StartRead(addr Address) error {
	return m.start(addr, txReading)
}

func (m *TxMaster) start(addr Address, mode txMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != txIdle {
		return ErrBusy
	}
	if addr > MaxAddress {
		return ErrNoDevice
	}

	m.mode = mode
	m.addr = addr
	m.buf = m.buf[:0]
	return nil
}

// WriteByte appends b to the pending write.
func (m *TxMaster) WriteByte(b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != txWriting {
		return ErrNotStarted
	}
	m.buf = append(m.buf, b)
	return nil
}

// ReadAck reads the next byte of the sequence.
func (m *TxMaster) ReadAck() (byte, error) {
	return m.readOne()
}

// ReadNak reads the last byte of the sequence.
func (m *TxMaster) ReadNak() (byte, error) {
	return m.readOne()
}

func (m *TxMaster) readOne() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != txReading {
		return 0, ErrNotStarted
	}
	if err := m.poll(nil, m.one[:]); err != nil {
		return 0, err
	}
	return m.one[0], nil
}

// Stop flushes a pending write and returns the master to idle. The master
// is idle afterwards even when the flush fails.
func (m *TxMaster) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mode := m.mode
	m.mode = txIdle

	switch mode {
	case txWriting:
		return m.poll(m.buf, nil)
	case txReading:
		return nil
	}
	return ErrNotStarted
}

// poll retries the transfer until the device acknowledges or the write
// cycle window closes. Must be called with mu held.
func (m *TxMaster) poll(w, r []byte) error {
	deadline := time.Now().Add(m.cfg.WriteCycle)
	for {
		err := m.bus.Tx(uint16(m.addr), w, r)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(m.cfg.PollInterval)
	}
}
