package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// NativePort is a host serial port.
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open opens cfg.Device and discards whatever the firmware sent before.
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, ErrNoDevice
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	p := &NativePort{port: port, cfg: *cfg}
	if err := p.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port %s: %w", cfg.Device, err)
	}
	return p, nil
}

func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	return timeoutRead(n, err, p.cfg.ReadTimeout)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	return p.port.Close()
}

func (p *NativePort) Flush() error {
	return p.port.Flush()
}
