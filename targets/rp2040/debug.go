//go:build rp2040

package main

import "machine"

var debugUART *machine.UART

// initDebugUART sets up UART0 on GP0 (TX) / GP1 (RX) at 115200 baud for
// firmware debug output. USB carries the protocol only.
func initDebugUART() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}
	debugUART = uart
	debugPrintln("=== ee24 debug UART ===")
}

func debugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
