//go:build rp2040

package main

import (
	"machine"
	"sync"

	"ee24/i2c"
)

// RPI2CDriver implements core.I2CDriver on the two hardware I2C blocks.
// Each bus is driven through an i2c.TxMaster, which turns the engine's
// byte-level primitives into machine.I2C transactions.
type RPI2CDriver struct {
	mu      sync.Mutex
	masters map[i2c.BusID]*i2c.TxMaster
}

func NewRPI2CDriver() *RPI2CDriver {
	return &RPI2CDriver{
		masters: make(map[i2c.BusID]*i2c.TxMaster),
	}
}

func machineBus(bus i2c.BusID) (*machine.I2C, error) {
	switch bus {
	case 0:
		// default pins SDA=GP4, SCL=GP5
		return machine.I2C0, nil
	case 1:
		// default pins SDA=GP6, SCL=GP7
		return machine.I2C1, nil
	default:
		return nil, i2c.ErrNoBus
	}
}

// ConfigureBus initializes bus at frequencyHz. A bus that is already set
// up only has its baud rate changed.
func (d *RPI2CDriver) ConfigureBus(bus i2c.BusID, frequencyHz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	hw, err := machineBus(bus)
	if err != nil {
		return err
	}

	if _, ok := d.masters[bus]; ok {
		return hw.SetBaudRate(frequencyHz)
	}

	// SDA and SCL left zero select the TinyGo board defaults
	if err := hw.Configure(machine.I2CConfig{Frequency: frequencyHz}); err != nil {
		return err
	}
	d.masters[bus] = i2c.NewTxMaster(hw, i2c.DefaultTxConfig())
	return nil
}

// Master returns the engine-facing master of a configured bus.
func (d *RPI2CDriver) Master(bus i2c.BusID) (i2c.Master, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.masters[bus]
	if !ok {
		return nil, i2c.ErrNoBus
	}
	return m, nil
}
