//go:build rp2040

// Command rp2040 is the ee24 firmware for RP2040 boards: the command
// layer served over USB CDC, with EEPROMs on the I2C0 and I2C1 blocks.
package main

import (
	"machine"
	"time"

	"ee24/core"
)

func main() {
	// clear any watchdog state left from before the reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	port := initUSB()
	initDebugUART()
	core.SetDebugWriter(debugPrintln)

	fw := core.NewFirmware(core.Config{
		MCU:   "rp2040",
		Buses: []string{"i2c0", "i2c1"},
		I2C:   NewRPI2CDriver(),
		Clock: hardwareUptime,
	})

	for {
		// Serve only returns on a port error; start over on a clean loop
		if err := fw.Serve(port); err != nil {
			debugPrintln("[fw] serve: " + err.Error())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
