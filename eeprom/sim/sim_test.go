package sim

import (
	"bytes"
	"testing"

	"ee24/eeprom"
	"ee24/i2c"
)

func TestWriteWrapsInsidePage(t *testing.T) {
	c, err := New(0x50, eeprom.AT24C02)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// 8 byte pages: writing 4 bytes at offset 6 wraps to 0 and 1
	c.StartWrite(0x50)
	c.WriteByte(6)
	for _, b := range []byte{0xa, 0xb, 0xc, 0xd} {
		c.WriteByte(b)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !bytes.Equal(c.Mem[0:8], []byte{0xc, 0xd, 0xff, 0xff, 0xff, 0xff, 0xa, 0xb}) {
		t.Errorf("Unexpected page contents % x", c.Mem[0:8])
	}
	if c.Mem[8] != 0xff {
		t.Errorf("Write leaked into the next page: %#x", c.Mem[8])
	}
}

func TestReadCrossesPages(t *testing.T) {
	c, _ := New(0x50, eeprom.AT24C32)
	for i := range c.Mem {
		c.Mem[i] = byte(i)
	}

	c.StartWrite(0x50)
	c.WriteByte(0x00)
	c.WriteByte(0x1e)
	c.Stop()

	c.StartRead(0x50)
	var got []byte
	for i := 0; i < 3; i++ {
		b, _ := c.ReadAck()
		got = append(got, b)
	}
	b, _ := c.ReadNak()
	got = append(got, b)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !bytes.Equal(got, []byte{0x1e, 0x1f, 0x20, 0x21}) {
		t.Errorf("Unexpected read % x", got)
	}
}

func TestSelectBitsPickBlock(t *testing.T) {
	c, _ := New(0x50, eeprom.AT24C16)

	// 0x53 selects block 3 (offsets 0x300..0x3ff)
	c.StartWrite(0x53)
	c.WriteByte(0x10)
	c.WriteByte(0x77)
	c.Stop()

	if c.Mem[0x310] != 0x77 {
		t.Errorf("Expected byte at 0x310, memory there is %#x", c.Mem[0x310])
	}

	if err := c.StartWrite(0x58); err != i2c.ErrNoDevice {
		t.Errorf("Expected ErrNoDevice for foreign address, got %v", err)
	}
	if !c.Idle() {
		t.Error("Chip should stay idle after an unanswered select")
	}
}

func TestProtocolViolations(t *testing.T) {
	c, _ := New(0x50, eeprom.AT24C02)

	if err := c.Stop(); err != ErrProtocol {
		t.Errorf("Stop on idle bus: expected ErrProtocol, got %v", err)
	}
	if err := c.WriteByte(1); err != ErrProtocol {
		t.Errorf("WriteByte on idle bus: expected ErrProtocol, got %v", err)
	}

	c.StartRead(0x50)
	c.ReadAck()
	if err := c.Stop(); err != ErrProtocol {
		t.Errorf("Stop after ACKed last byte: expected ErrProtocol, got %v", err)
	}

	c.StartRead(0x50)
	c.ReadNak()
	if _, err := c.ReadAck(); err != ErrProtocol {
		t.Errorf("Read after NAK: expected ErrProtocol, got %v", err)
	}
	c.Stop()

	c.StartWrite(0x50)
	if err := c.StartWrite(0x50); err != ErrProtocol {
		t.Errorf("Start inside a transaction: expected ErrProtocol, got %v", err)
	}
}

func TestUnsupportedCapacity(t *testing.T) {
	if _, err := New(0x50, 3); err != eeprom.ErrUnsupportedCapacity {
		t.Errorf("Expected ErrUnsupportedCapacity, got %v", err)
	}
}
