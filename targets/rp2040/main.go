//go:build rp2040

package main

import (
	"machine"

	"floppier/targets/firmware"
)

func main() {
	// Disable watchdog left over from a previous image
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	firmware.Run(firmware.Board{
		Name: "rp2040",
		Debug: firmware.DebugUART{
			UART: machine.UART1,
			TX:   machine.GPIO8,
			RX:   machine.GPIO9,
		},
		LED: machine.LED,
	})
}
