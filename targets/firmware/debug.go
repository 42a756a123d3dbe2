//go:build rp2040 || rp2350

package firmware

import (
	"machine"
)

// DebugUART describes the optional diagnostics UART of a board
type DebugUART struct {
	UART *machine.UART
	TX   machine.Pin
	RX   machine.Pin
	Baud uint32
}

var debugUART *machine.UART

// initDebug configures the UART and returns a writer for core.Diagnostics,
// or nil when the board has no debug UART
func initDebug(cfg DebugUART) func(string) {
	if cfg.UART == nil {
		return nil
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = 115200
	}
	err := cfg.UART.Configure(machine.UARTConfig{
		BaudRate: baud,
		TX:       cfg.TX,
		RX:       cfg.RX,
	})
	if err != nil {
		return nil
	}
	debugUART = cfg.UART
	return debugPrintln
}

// debugPrintln writes a string to the debug UART with newline
func debugPrintln(s string) {
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
