//go:build rp2350

package firmware

import (
	"device/rp"
	"runtime/interrupt"
)

// RP2350 TIMER0 sits at a different address than the RP2040 TIMER and has
// two extra registers ahead of INTR.
const (
	timerBase    = 0x400B0000
	timerOffRAWL = 0x28
	timerOffINTR = 0x3C
	timerOffINTE = 0x40
)

func newAlarmInterrupt() interrupt.Interrupt {
	return interrupt.New(rp.IRQ_TIMER0_IRQ_3, alarmISR)
}
