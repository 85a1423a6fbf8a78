package i2c

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

type txCall struct {
	addr uint16
	w    []byte
	r    int
}

// fakeBus is a drivers.I2C that records transfers and serves reads from mem.
type fakeBus struct {
	calls   []txCall
	mem     []byte
	ptr     int
	busyFor int // number of transfers to refuse before answering
	err     error
}

func (f *fakeBus) ReadRegister(addr uint8, r uint8, buf []byte) error  { panic("not implemented") }
func (f *fakeBus) WriteRegister(addr uint8, r uint8, buf []byte) error { panic("not implemented") }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.busyFor > 0 {
		f.busyFor--
		return errors.New("address not acknowledged")
	}
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, txCall{addr, append([]byte(nil), w...), len(r)})
	if len(w) > 0 {
		f.ptr = int(w[0])
	}
	for i := range r {
		r[i] = f.mem[f.ptr]
		f.ptr++
	}
	return nil
}

func TestTxMasterBuffersWriteUntilStop(t *testing.T) {
	bus := &fakeBus{}
	m := NewTxMaster(bus, TxConfig{})

	if err := m.StartWrite(0x50); err != nil {
		t.Fatalf("StartWrite failed: %v", err)
	}
	for _, b := range []byte{0x10, 0xaa, 0xbb} {
		if err := m.WriteByte(b); err != nil {
			t.Fatalf("WriteByte failed: %v", err)
		}
	}

	if len(bus.calls) != 0 {
		t.Fatalf("Expected no transfer before Stop, got %d", len(bus.calls))
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(bus.calls) != 1 {
		t.Fatalf("Expected one transfer, got %d", len(bus.calls))
	}
	if bus.calls[0].addr != 0x50 {
		t.Errorf("Expected address 0x50, got %#x", bus.calls[0].addr)
	}
	if !bytes.Equal(bus.calls[0].w, []byte{0x10, 0xaa, 0xbb}) {
		t.Errorf("Unexpected write payload % x", bus.calls[0].w)
	}
}

func TestTxMasterSequentialRead(t *testing.T) {
	bus := &fakeBus{mem: []byte{0, 1, 2, 3, 4, 5, 6, 7}}
	m := NewTxMaster(bus, TxConfig{})

	// set the pointer with a dummy write
	m.StartWrite(0x50)
	m.WriteByte(3)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if err := m.StartRead(0x50); err != nil {
		t.Fatalf("StartRead failed: %v", err)
	}
	a, _ := m.ReadAck()
	b, _ := m.ReadAck()
	c, err := m.ReadNak()
	if err != nil {
		t.Fatalf("ReadNak failed: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if a != 3 || b != 4 || c != 5 {
		t.Errorf("Expected 3 4 5, got %d %d %d", a, b, c)
	}
}

func TestTxMasterPollsBusyDevice(t *testing.T) {
	bus := &fakeBus{busyFor: 3}
	m := NewTxMaster(bus, TxConfig{WriteCycle: 50 * time.Millisecond, PollInterval: 100 * time.Microsecond})

	m.StartWrite(0x50)
	m.WriteByte(0x00)
	if err := m.Stop(); err != nil {
		t.Fatalf("Expected busy device to be polled until ready, got %v", err)
	}
	if len(bus.calls) != 1 {
		t.Errorf("Expected one successful transfer, got %d", len(bus.calls))
	}
}

func TestTxMasterGivesUpAfterWriteCycle(t *testing.T) {
	wantErr := errors.New("address not acknowledged")
	bus := &fakeBus{err: wantErr}
	m := NewTxMaster(bus, TxConfig{WriteCycle: time.Millisecond, PollInterval: 100 * time.Microsecond})

	m.StartWrite(0x50)
	m.WriteByte(0x00)
	if err := m.Stop(); err != wantErr {
		t.Fatalf("Expected bus error, got %v", err)
	}

	// the master must be idle again
	if err := m.StartWrite(0x50); err != nil {
		t.Errorf("Expected idle master after failed Stop, got %v", err)
	}
}

func TestTxMasterStateErrors(t *testing.T) {
	m := NewTxMaster(&fakeBus{}, TxConfig{})

	if err := m.WriteByte(1); err != ErrNotStarted {
		t.Errorf("WriteByte on idle master: expected ErrNotStarted, got %v", err)
	}
	if _, err := m.ReadAck(); err != ErrNotStarted {
		t.Errorf("ReadAck on idle master: expected ErrNotStarted, got %v", err)
	}
	if err := m.Stop(); err != ErrNotStarted {
		t.Errorf("Stop on idle master: expected ErrNotStarted, got %v", err)
	}
	if err := m.StartWrite(0x80); err != ErrNoDevice {
		t.Errorf("StartWrite(0x80): expected ErrNoDevice, got %v", err)
	}

	m.StartRead(0x50)
	if err := m.StartWrite(0x50); err != ErrBusy {
		t.Errorf("StartWrite during read: expected ErrBusy, got %v", err)
	}
	if err := m.WriteByte(1); err != ErrNotStarted {
		t.Errorf("WriteByte during read: expected ErrNotStarted, got %v", err)
	}
}

func TestTracerLogsPrimitives(t *testing.T) {
	var lines []string
	tr := NewTracer(NewTxMaster(&fakeBus{mem: []byte{0x42}}, TxConfig{}), func(s string) {
		lines = append(lines, s)
	})

	tr.StartWrite(0x50)
	tr.WriteByte(0x00)
	tr.Stop()
	tr.StartRead(0x50)
	tr.ReadNak()
	tr.Stop()
	tr.Stop()

	want := []string{
		"[i2c] START W 0x50",
		"[i2c] WRITE 0x00",
		"[i2c] STOP",
		"[i2c] START R 0x50",
		"[i2c] READ 0x42 NAK",
		"[i2c] STOP",
		"[i2c] STOP > " + ErrNotStarted.Error(),
	}

	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("Unexpected trace:\n%s\nwant:\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
}
