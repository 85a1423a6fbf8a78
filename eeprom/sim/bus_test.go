package sim

import (
	"bytes"
	"testing"

	"ee24/eeprom"
	"ee24/i2c"
)

func TestBusRoutesByAddress(t *testing.T) {
	small, _ := New(0x50, eeprom.AT24C02)
	wide, _ := New(0x54, eeprom.AT24C04)

	var bus Bus
	bus.Attach(small)
	bus.Attach(wide)

	// 0x55 is the upper block of the 4 Kbit part
	if err := eeprom.Write(&bus, mustDevice(t, 0x54, eeprom.AT24C04), 0x105, []byte{1, 2}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Equal(wide.Mem[0x105:0x107], []byte{1, 2}) {
		t.Errorf("Wide chip holds % x", wide.Mem[0x105:0x107])
	}
	if len(small.Log) != 0 {
		t.Errorf("Small chip saw %d transactions", len(small.Log))
	}

	if err := bus.StartWrite(0x60); err != i2c.ErrNoDevice {
		t.Errorf("Expected ErrNoDevice, got %v", err)
	}
	if err := bus.Stop(); err != ErrProtocol {
		t.Errorf("Stop without a transaction: expected ErrProtocol, got %v", err)
	}
}

func TestBoard(t *testing.T) {
	board := NewBoard(2)

	if err := board.ConfigureBus(1, 100000); err != nil {
		t.Fatalf("ConfigureBus failed: %v", err)
	}
	if board.Frequency(1) != 100000 || board.Frequency(0) != 0 {
		t.Errorf("Unexpected frequencies %d %d", board.Frequency(0), board.Frequency(1))
	}
	if err := board.ConfigureBus(2, 100000); err != i2c.ErrNoBus {
		t.Errorf("Expected ErrNoBus, got %v", err)
	}

	m, err := board.Master(1)
	if err != nil || m != board.Bus(1) {
		t.Errorf("Master(1) = %v, %v", m, err)
	}
	if _, err := board.Master(5); err != i2c.ErrNoBus {
		t.Errorf("Expected ErrNoBus, got %v", err)
	}
}

func mustDevice(t *testing.T, addr i2c.Address, c eeprom.Capacity) eeprom.Device {
	t.Helper()
	dev, err := eeprom.New(addr, c)
	if err != nil {
		t.Fatal(err)
	}
	return dev
}
