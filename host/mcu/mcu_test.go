package mcu

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"ee24/core"
	"ee24/eeprom"
	"ee24/eeprom/sim"
	"ee24/i2c"
)

// past the 32-bit clock wrap
const simUptime = 5*time.Hour + 250*time.Millisecond

func connectSim(t *testing.T) (*MCU, *sim.Chip) {
	t.Helper()

	board := sim.NewBoard(1)
	chip, err := sim.New(0x50, eeprom.AT24C256)
	if err != nil {
		t.Fatal(err)
	}
	board.Bus(0).Attach(chip)

	fw := core.NewFirmware(core.Config{
		MCU:   "sim",
		Buses: []string{"i2c0"},
		I2C:   board,
		Clock: func() uint64 { return uint64(simUptime / time.Microsecond) },
	})
	mcuConn, hostConn := net.Pipe()
	go fw.Serve(mcuConn)

	m := NewMCU()
	m.Timeout = time.Second
	m.ConnectPort(hostConn)
	t.Cleanup(func() { m.Close() })

	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	return m, chip
}

func TestRetrieveDictionary(t *testing.T) {
	m, _ := connectSim(t)

	dict := m.GetDictionary()
	if dict.Version == "" {
		t.Error("Empty version")
	}
	if id, err := m.commandID("eeprom_read"); err != nil || id == 0 {
		t.Errorf("commandID(eeprom_read) = %d, %v", id, err)
	}
	if n, ok := dict.ConfigInt("EEPROM_MAX_TRANSFER"); !ok || n != core.MaxTransfer {
		t.Errorf("EEPROM_MAX_TRANSFER = %d, %v", n, ok)
	}
	if _, err := m.commandID("no_such_command"); err == nil {
		t.Error("Expected an error for an unknown command")
	}
}

func TestCommandsNeedDictionary(t *testing.T) {
	m := NewMCU()
	if err := m.SendCommand("get_config", nil); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := m.RetrieveDictionary(); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestEEPROMChunkedTransfer(t *testing.T) {
	m, chip := connectSim(t)

	if err := m.ConfigEEPROM(0, 0, 0x50, eeprom.AT24C256); err != nil {
		t.Fatalf("ConfigEEPROM failed: %v", err)
	}

	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i * 7)
	}
	if err := m.WriteEEPROM(0, 0x1f0, data); err != nil {
		t.Fatalf("WriteEEPROM failed: %v", err)
	}
	if !bytes.Equal(chip.Mem[0x1f0:0x1f0+200], data) {
		t.Error("Chip contents differ")
	}
	for _, w := range chip.Writes() {
		start := int(w.Address[0])<<8 | int(w.Address[1])
		if start/64 != (start+len(w.Data)-1)/64 {
			t.Errorf("Transaction at %#x with %d bytes crosses a page", start, len(w.Data))
		}
	}

	got, err := m.ReadEEPROM(0, 0x1f0, 200)
	if err != nil {
		t.Fatalf("ReadEEPROM failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Read back differs")
	}

	cfg, err := m.GetConfig()
	if err != nil || !cfg.IsConfig || cfg.EEPROMCount != 1 {
		t.Errorf("GetConfig = %+v, %v", cfg, err)
	}
}

func TestEEPROMStatusErrors(t *testing.T) {
	m, _ := connectSim(t)

	if err := m.ConfigEEPROM(0, 0, 0x50, 3); !errors.Is(err, eeprom.ErrUnsupportedCapacity) {
		t.Errorf("Expected ErrUnsupportedCapacity, got %v", err)
	}
	if err := m.ConfigEEPROM(0, 4, 0x50, eeprom.AT24C256); !errors.Is(err, i2c.ErrNoBus) {
		t.Errorf("Expected ErrNoBus, got %v", err)
	}
	if _, err := m.ReadEEPROM(9, 0, 4); !errors.Is(err, ErrUnknownOID) {
		t.Errorf("Expected ErrUnknownOID, got %v", err)
	}

	if err := m.ConfigEEPROM(1, 0, 0x51, eeprom.AT24C256); err != nil {
		t.Fatalf("ConfigEEPROM failed: %v", err)
	}
	err := m.WriteEEPROM(1, 0, []byte{1})
	if !errors.Is(err, ErrBusError) {
		t.Errorf("Expected ErrBusError for an absent chip, got %v", err)
	}

	if err := m.WriteEEPROM(1, 0xfff0, make([]byte, 32)); err != eeprom.ErrInvalidRange {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestRemoteReaderAt(t *testing.T) {
	m, chip := connectSim(t)
	if err := m.ConfigEEPROM(2, 0, 0x50, eeprom.AT24C256); err != nil {
		t.Fatal(err)
	}

	r, err := m.Remote(2, eeprom.AT24C256)
	if err != nil {
		t.Fatal(err)
	}
	if r.Size() != 32768 {
		t.Errorf("Size %d", r.Size())
	}

	copy(chip.Mem[32760:], "tailtail")
	buf := make([]byte, 16)
	n, err := r.ReadAt(buf, 32760)
	if n != 8 || err != io.EOF || string(buf[:8]) != "tailtail" {
		t.Errorf("ReadAt at the end: %d, %v, %q", n, err, buf[:n])
	}

	if _, err := r.WriteAt([]byte("xx"), 32767); err != eeprom.ErrInvalidRange {
		t.Errorf("WriteAt past the end: expected ErrInvalidRange, got %v", err)
	}

	section := io.NewSectionReader(r, 100, 60)
	if _, err := r.WriteAt(bytes.Repeat([]byte{0x3c}, 60), 100); err != nil {
		t.Fatal(err)
	}
	all, err := io.ReadAll(section)
	if err != nil || !bytes.Equal(all, bytes.Repeat([]byte{0x3c}, 60)) {
		t.Errorf("Section read %d bytes, %v", len(all), err)
	}
}

func TestRemoteWriteAtCountsStoredChunks(t *testing.T) {
	m, chip := connectSim(t)
	if err := m.ConfigEEPROM(0, 0, 0x50, eeprom.AT24C256); err != nil {
		t.Fatal(err)
	}
	r, _ := m.Remote(0, eeprom.AT24C256)

	// the first chunk is one page write; the second chunk's second page fails
	starts := 0
	chip.Fault = func(op string) error {
		if op == eeprom.OpStartWrite {
			starts++
			if starts == 3 {
				return i2c.ErrNACK
			}
		}
		return nil
	}

	data := bytes.Repeat([]byte{0x5a}, 100)
	n, err := r.WriteAt(data, 0)
	if !errors.Is(err, ErrBusError) {
		t.Errorf("Expected ErrBusError, got %v", err)
	}
	if n != core.MaxTransfer {
		t.Errorf("Expected %d stored bytes, got %d", core.MaxTransfer, n)
	}
	if !bytes.Equal(chip.Mem[:n], data[:n]) {
		t.Error("Reported bytes are not on the chip")
	}
}

func TestUptime(t *testing.T) {
	m, _ := connectSim(t)
	uptime, err := m.Uptime()
	if err != nil {
		t.Fatalf("Uptime failed: %v", err)
	}
	if uptime != simUptime {
		t.Errorf("Expected %v, got %v", simUptime, uptime)
	}
}

func TestStatusError(t *testing.T) {
	if StatusError(core.StatusOK) != nil {
		t.Error("StatusOK must map to nil")
	}
	if err := StatusError(200); err == nil {
		t.Error("Unknown status must be an error")
	}
}
