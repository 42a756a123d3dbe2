//go:build rp2350

package main

import (
	"machine"

	"floppier/targets/firmware"
)

func main() {
	// Disable watchdog left over from a previous image
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	// Debug on UART1, GPIO36 (TX) and GPIO37 (RX) of the RP2350B
	firmware.Run(firmware.Board{
		Name: "rp2350",
		Debug: firmware.DebugUART{
			UART: machine.UART1,
			TX:   machine.GPIO36,
			RX:   machine.GPIO37,
		},
		LED: machine.LED,
	})
}
