//go:build rp2040

package main

import (
	"machine"
	"time"
)

// usbPort adapts machine.Serial (USB CDC on the RP2040) to the
// io.ReadWriter the firmware serves on.
type usbPort struct {
	writeFailures uint32
}

func initUSB() *usbPort {
	machine.Serial.Configure(machine.UARTConfig{})
	return &usbPort{}
}

// Read returns whatever is buffered, idling briefly when nothing is.
func (p *usbPort) Read(buf []byte) (int, error) {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	if n == 0 {
		time.Sleep(100 * time.Microsecond)
	}
	return n, nil
}

// Write sends data, dropping it once the host has stopped draining the
// endpoint so the firmware loop keeps running while unplugged.
func (p *usbPort) Write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := machine.Serial.Write(data[written:])
		if err != nil || n == 0 {
			p.writeFailures++
			if p.writeFailures > 10 {
				p.writeFailures = 0
				debugPrintln("[usb] host gone, dropping output")
			}
			return len(data), nil
		}
		written += n
	}
	p.writeFailures = 0
	return written, nil
}
