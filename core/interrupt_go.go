//go:build !tinygo

package core

// State stands in for the saved interrupt mask on hosted Go
type State uintptr

// disableInterrupts does nothing on hosted Go; tests drive the tick path
// from the same goroutine as the command path.
func disableInterrupts() State {
	return 0
}

func restoreInterrupts(state State) {}
