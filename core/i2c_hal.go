package core

import "ee24/i2c"

// DefaultI2CFrequency is the bus rate used when a bus is first claimed.
// Every 24CXX part supports fast mode.
const DefaultI2CFrequency = 400000

// I2CDriver is the board specific I2C layer. Targets register hardware
// controllers; the host simulator registers simulated buses.
type I2CDriver interface {
	// ConfigureBus initializes controller bus at the given rate.
	ConfigureBus(bus i2c.BusID, frequencyHz uint32) error

	// Master returns the byte-level master for a configured bus.
	Master(bus i2c.BusID) (i2c.Master, error)
}
