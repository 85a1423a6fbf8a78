package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ee24/host/config"
	"ee24/host/mcu"
)

const testConfig = `{
	"eeproms": [
		{"name": "id", "oid": 0, "bus": 0, "address": "0x50", "capacity": "24c02"},
		{"name": "store", "oid": 1, "bus": 1, "address": "0x54", "capacity": "24c16"}
	]
}`

func newTestConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()

	cfg, err := config.LoadConfig([]byte(testConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	port, err := startSim(cfg)
	if err != nil {
		t.Fatalf("startSim failed: %v", err)
	}

	m := mcu.NewMCU()
	m.ConnectPort(port)
	t.Cleanup(func() { m.Close() })

	var out bytes.Buffer
	c := newConsole(m, cfg, &out)
	if err := c.setup(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return c, &out
}

func run(t *testing.T, c *console, line string) {
	t.Helper()
	if _, err := c.exec(line); err != nil {
		t.Fatalf("%q failed: %v", line, err)
	}
}

func TestConsoleWriteRead(t *testing.T) {
	c, out := newTestConsole(t)

	run(t, c, `write id 0x10 "hello world"`)
	if !strings.Contains(out.String(), "Wrote 11 bytes at 0x0010") {
		t.Errorf("Unexpected write output: %q", out.String())
	}

	out.Reset()
	run(t, c, "read id 0x10 5")
	if !strings.Contains(out.String(), "0010  68 65 6c 6c 6f") {
		t.Errorf("Unexpected dump: %q", out.String())
	}
	if !strings.Contains(out.String(), "|hello|") {
		t.Errorf("Missing ascii column: %q", out.String())
	}

	// by oid, hex payload, across the 24c16 block boundary
	run(t, c, "write 1 0x0ff 0xdeadbeef")
	data, err := c.m.ReadEEPROM(1, 0x0ff, 4)
	if err != nil {
		t.Fatalf("ReadEEPROM failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("Expected de ad be ef, got % x", data)
	}
}

func TestConsoleDumpLoad(t *testing.T) {
	c, out := newTestConsole(t)
	dir := t.TempDir()

	image := make([]byte, 64)
	for i := range image {
		image[i] = byte(i)
	}
	in := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(in, image, 0o644); err != nil {
		t.Fatal(err)
	}

	run(t, c, "load id "+in+" 0x20")
	if !strings.Contains(out.String(), "Loaded 64 bytes at 0x0020") {
		t.Errorf("Unexpected load output: %q", out.String())
	}

	saved := filepath.Join(dir, "out.bin")
	run(t, c, "dump id "+saved)

	got, err := os.ReadFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 256 {
		t.Fatalf("Expected a 256 byte image, got %d", len(got))
	}
	if !bytes.Equal(got[0x20:0x60], image) {
		t.Errorf("Loaded region differs: % x", got[0x20:0x60])
	}
	if got[0] != 0xff || got[0x60] != 0xff {
		t.Error("Expected blank memory around the loaded region")
	}
}

func TestConsoleStatusDevices(t *testing.T) {
	c, out := newTestConsole(t)

	run(t, c, "status")
	if !strings.Contains(out.String(), "configured=true eeproms=2") {
		t.Errorf("Unexpected status: %q", out.String())
	}

	out.Reset()
	run(t, c, "devices")
	for _, want := range []string{"id", "2Kbit at 0x50 on i2c0", "store", "16Kbit at 0x54 on i2c1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Device list is missing %q: %q", want, out.String())
		}
	}
}

func TestConsoleErrors(t *testing.T) {
	c, _ := newTestConsole(t)

	for _, line := range []string{
		"bogus",
		"read",
		"read nosuch 0 1",
		"read id zero 1",
		"write id 0 0xzz",
		"debug maybe",
		`write id 0 "unterminated`,
	} {
		if _, err := c.exec(line); err == nil {
			t.Errorf("%q: expected an error", line)
		}
	}

	// a 24c02 ends at 0x100
	if _, err := c.exec("write id 0xfe abcd"); err == nil {
		t.Error("Expected a write past the end of the chip to fail")
	}

	quit, err := c.exec("quit")
	if !quit || err != nil {
		t.Errorf("quit: got %v, %v", quit, err)
	}
	if quit, _ := c.exec("   "); quit {
		t.Error("Blank line must not quit")
	}
}

func TestParseData(t *testing.T) {
	data, err := parseData([]string{"0x01", "02ff"})
	if err != nil || !bytes.Equal(data, []byte{1, 2, 0xff}) {
		t.Errorf("Hex: got % x, %v", data, err)
	}
	data, _ = parseData([]string{"two", "words"})
	if string(data) != "two words" {
		t.Errorf("Text: got %q", data)
	}
}
