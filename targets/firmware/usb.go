//go:build rp2040 || rp2350

package firmware

import (
	"machine"
)

// InitUSB configures machine.Serial, which TinyGo maps to USB CDC
func InitUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// USBRead drains buffered USB bytes into buf and returns the count
func USBRead(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	return n
}
