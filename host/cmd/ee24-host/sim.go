package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"ee24/core"
	"ee24/eeprom/sim"
	"ee24/host/config"
	"ee24/i2c"
)

// startSim runs the firmware on a goroutine with one blank simulated chip
// per configured eeprom and returns the host end of the link.
func startSim(cfg *config.Config) (io.ReadWriteCloser, error) {
	board := sim.NewBoard(len(cfg.Buses))
	for _, e := range cfg.EEPROMs {
		addr, c, err := e.Device()
		if err != nil {
			return nil, err
		}
		chip, err := sim.New(addr, c)
		if err != nil {
			return nil, fmt.Errorf("eeprom %s: %w", e.Name, err)
		}
		board.Bus(i2c.BusID(e.Bus)).Attach(chip)
	}

	core.SetDebugWriter(func(s string) {
		fmt.Fprintln(os.Stderr, s)
	})

	fw := core.NewFirmware(core.Config{
		MCU:   "sim",
		Buses: cfg.Buses,
		I2C:   board,
	})

	mcuEnd, hostEnd := net.Pipe()
	go func() {
		if err := fw.Serve(mcuEnd); err != nil {
			fmt.Fprintf(os.Stderr, "simulated firmware stopped: %v\n", err)
		}
	}()
	return hostEnd, nil
}
