//go:build rp2040 || rp2350

package pio

import (
	"machine"

	"floppier/core"

	"tinygo.org/x/drivers/shiftregister"
)

// ShiftChainGPIO bit-bangs a segment of up to 32 outputs through
// drivers/shiftregister. WriteMask shifts every bit before its single latch
// edge, so a one-word segment updates atomically.
type ShiftChainGPIO struct {
	dev   *shiftregister.Device
	oe    outputEnable
	width int
	ready bool
}

// NewShiftChainGPIO creates a bit-banged backend of 32 outputs
func NewShiftChainGPIO(data, clock, latch machine.Pin, oe outputEnable, width int) *ShiftChainGPIO {
	return &ShiftChainGPIO{
		dev:   shiftregister.New(shiftregister.NumberBit(width), latch, clock, data),
		oe:    oe,
		width: width,
	}
}

// Init configures the pins with outputs disabled
func (c *ShiftChainGPIO) Init() error {
	c.oe.configure()
	c.dev.Configure()
	c.ready = true
	return nil
}

// Width returns the segment width
func (c *ShiftChainGPIO) Width() int {
	return c.width
}

// Write shifts the single bank word and latches it
func (c *ShiftChainGPIO) Write(words []uint32) error {
	if !c.ready || len(words) != 1 {
		return core.ErrOutputUnavailable
	}
	c.dev.WriteMask(words[0])
	return nil
}

// SetOutputEnabled drives the active-low /OE line
func (c *ShiftChainGPIO) SetOutputEnabled(enabled bool) error {
	return c.oe.set(enabled)
}

// Name returns the backend name
func (c *ShiftChainGPIO) Name() string {
	return "GPIO"
}
