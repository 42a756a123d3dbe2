//go:build rp2040 || rp2350

package firmware

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"floppier/core"
)

// The tick runs from hardware alarm 3 of the 1 MHz timer. Alarms 0-2 are
// left to the TinyGo runtime.
const tickAlarm = 3

var (
	timerRAWL  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerBase + timerOffRAWL)))
	timerALARM = (*volatile.Register32)(unsafe.Pointer(uintptr(timerBase + 0x10 + 4*tickAlarm)))
	timerINTR  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerBase + timerOffINTR)))
	timerINTE  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerBase + timerOffINTE)))

	// Timers dispatched by the alarm interrupt
	tickQueue core.TimerQueue
)

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// StartTick schedules the engine's periodic tick and arms the alarm
func StartTick(engine *core.Engine) {
	tickQueue.Schedule(engine.TickTimer(GetHardwareTime()))

	intr := newAlarmInterrupt()
	intr.SetPriority(0x00)
	intr.Enable()

	state := interrupt.Disable()
	timerINTE.SetBits(1 << tickAlarm)
	armNext()
	interrupt.Restore(state)
}

// alarmISR runs every due timer and re-arms the alarm for the next one
func alarmISR(interrupt.Interrupt) {
	timerINTR.Set(1 << tickAlarm)
	tickQueue.Dispatch(GetHardwareTime())
	armNext()
}

// armNext writes the next wake time. An alarm only fires on an exact
// match, so a wake time already passed is dispatched here instead.
func armNext() {
	for {
		next, ok := tickQueue.NextWake()
		if !ok {
			return
		}
		timerALARM.Set(next)
		if int32(next-GetHardwareTime()) > 0 {
			return
		}
		tickQueue.Dispatch(GetHardwareTime())
	}
}
