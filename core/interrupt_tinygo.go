//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so the tick ISR cannot observe or
// tear a multi-field update. Returns the previous mask.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
