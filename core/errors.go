package core

import "errors"

var (
	// ErrOutOfRange marks a command whose frequency or address has no valid mapping
	ErrOutOfRange = errors.New("command out of range")
	// ErrUnsupported marks a command kind this firmware does not implement
	ErrUnsupported = errors.New("unsupported command")
	// ErrOutputUnavailable means the shift-register chain cannot be written
	ErrOutputUnavailable = errors.New("output unavailable")
	// ErrFaulted is returned once the engine has stopped on a hardware fault
	ErrFaulted = errors.New("engine halted on hardware fault")
)

// HardwareError reports which chain segment failed
type HardwareError struct {
	Segment int
	Err     error
}

func (e *HardwareError) Error() string {
	msg := "segment " + itoa(e.Segment) + ": " + ErrOutputUnavailable.Error()
	if e.Err != nil && e.Err != ErrOutputUnavailable {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

func (e *HardwareError) Is(target error) bool {
	return target == ErrOutputUnavailable
}

// ErrBusy is returned by operations that need the tick timer stopped
var ErrBusy = errors.New("tick timer running")
