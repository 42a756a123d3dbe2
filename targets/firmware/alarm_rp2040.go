//go:build rp2040

package firmware

import (
	"device/rp"
	"runtime/interrupt"
)

// RP2040 TIMER peripheral
const (
	timerBase    = 0x40054000
	timerOffRAWL = 0x28
	timerOffINTR = 0x34
	timerOffINTE = 0x38
)

func newAlarmInterrupt() interrupt.Interrupt {
	return interrupt.New(rp.IRQ_TIMER_IRQ_3, alarmISR)
}
