package i2c

import "strconv"

// Tracer wraps a Master and reports every bus primitive to a line sink.
// Firmware points the sink at its debug writer.
type Tracer struct {
	m   Master
	out func(string)
}

// NewTracer returns a Master that forwards to m and logs through out.
func NewTracer(m Master, out func(string)) *Tracer {
	return &Tracer{m: m, out: out}
}

func (t *Tracer) StartWrite(addr Address) error {
	err := t.m.StartWrite(addr)
	t.emit("START W "+hex8(uint8(addr)), err)
	return err
}

func (t *Tracer) StartRead(addr Address) error {
	err := t.m.StartRead(addr)
	t.emit("START R "+hex8(uint8(addr)), err)
	return err
}

func (t *Tracer) WriteByte(b byte) error {
	err := t.m.WriteByte(b)
	t.emit("WRITE "+hex8(b), err)
	return err
}

func (t *Tracer) ReadAck() (byte, error) {
	b, err := t.m.ReadAck()
	t.emit("READ "+hex8(b)+" ACK", err)
	return b, err
}

func (t *Tracer) ReadNak() (byte, error) {
	b, err := t.m.ReadNak()
	t.emit("READ "+hex8(b)+" NAK", err)
	return b, err
}

func (t *Tracer) Stop() error {
	err := t.m.Stop()
	t.emit("STOP", err)
	return err
}

func (t *Tracer) emit(line string, err error) {
	if t.out == nil {
		return
	}
	if err != nil {
		line += " > " + err.Error()
	}
	t.out("[i2c] " + line)
}

func hex8(v uint8) string {
	s := strconv.FormatUint(uint64(v), 16)
	if len(s) < 2 {
		s = "0" + s
	}
	return "0x" + s
}
