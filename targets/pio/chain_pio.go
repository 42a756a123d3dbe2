//go:build rp2040 || rp2350

package pio

// PIO shift-register backend using tinygo-org/pio.
// One state machine drives one 74HC595 segment of 64 outputs.

import (
	"errors"
	"machine"

	"floppier/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PIO program for a 64-bit 74HC595 segment.
// Clock is the side-set pin, latch is the SET pin, data is the OUT pin.
//
// Program flow:
//  1. Pull the first word, shift its 32 bits LSB first, one clock each
//  2. Pull the second word and shift it the same way
//  3. Pulse the latch once so all 64 outputs change together
//
// The program only latches after both words arrive, so the outputs never
// show half a bank.
const (
	shiftSidesetBits = 1
	shiftWords       = 2
)

func sideset(value uint8) uint16 {
	return rp2pio.EncodeSideSet(shiftSidesetBits, value)
}

// delay encodes delay cycles in the 4 bits left beside one side-set bit
func delay(cycles uint8) uint16 {
	return uint16(cycles&0x0F) << 8
}

// buildShiftProgram returns a position independent program; jumps are
// relative to 0 and relocated by AddProgram.
func buildShiftProgram() []uint16 {
	return []uint16{
		// .wrap_target
		rp2pio.EncodePull(false, true) | sideset(0),                      // 0: pull block side 0
		rp2pio.EncodeSet(rp2pio.SrcDestX, 31) | sideset(0),               // 1: set x, 31 side 0
		rp2pio.EncodeOut(rp2pio.SrcDestPins, 1) | sideset(0) | delay(1),  // 2: out pins, 1 side 0 [1]
		rp2pio.EncodeJmp(2, rp2pio.JmpXNZeroDec) | sideset(1) | delay(1), // 3: jmp x--, 2 side 1 [1]
		rp2pio.EncodePull(false, true) | sideset(0),                      // 4: pull block side 0
		rp2pio.EncodeSet(rp2pio.SrcDestX, 31) | sideset(0),               // 5: set x, 31 side 0
		rp2pio.EncodeOut(rp2pio.SrcDestPins, 1) | sideset(0) | delay(1),  // 6: out pins, 1 side 0 [1]
		rp2pio.EncodeJmp(6, rp2pio.JmpXNZeroDec) | sideset(1) | delay(1), // 7: jmp x--, 6 side 1 [1]
		rp2pio.EncodeSet(rp2pio.SrcDestPins, 1) | sideset(0) | delay(1),  // 8: set pins, 1 side 0 [1]
		rp2pio.EncodeSet(rp2pio.SrcDestPins, 0) | sideset(0),             // 9: set pins, 0 side 0
		// .wrap
	}
}

// txSpinLimit bounds the wait for FIFO space. A healthy state machine
// drains a word in well under this many polls.
const txSpinLimit = 10000

var ErrTxStalled = errors.New("pio tx fifo stalled")

// ShiftChainPIO drives one segment from a PIO state machine
type ShiftChainPIO struct {
	pio      *rp2pio.PIO
	sm       rp2pio.StateMachine
	dataPin  machine.Pin
	clockPin machine.Pin
	latchPin machine.Pin
	oe       outputEnable
	clockDiv uint16
	offset   uint8
	ready    bool
}

// NewShiftChainPIO creates a PIO backend on a state machine the caller
// has already claimed
func NewShiftChainPIO(sm rp2pio.StateMachine, data, clock, latch machine.Pin, oe outputEnable, clockDiv uint16) *ShiftChainPIO {
	return &ShiftChainPIO{
		pio:      sm.PIO(),
		sm:       sm,
		dataPin:  data,
		clockPin: clock,
		latchPin: latch,
		oe:       oe,
		clockDiv: clockDiv,
	}
}

// Init loads the program and starts the state machine with outputs disabled
func (c *ShiftChainPIO) Init() error {
	if !c.sm.IsClaimed() {
		return ErrNoStateMachine
	}
	c.oe.configure()

	program := buildShiftProgram()
	offset, err := loadProgram(c.pio, program)
	if err != nil {
		return err
	}
	c.offset = offset

	c.dataPin.Configure(machine.PinConfig{Mode: c.pio.PinMode()})
	c.clockPin.Configure(machine.PinConfig{Mode: c.pio.PinMode()})
	c.latchPin.Configure(machine.PinConfig{Mode: c.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(c.dataPin, 1)
	cfg.SetSetPins(c.latchPin, 1)
	cfg.SetSidesetParams(shiftSidesetBits, false, false)
	cfg.SetSidesetPins(c.clockPin)

	// LSB first, explicit PULL
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(c.clockDiv, 0)

	// Init before pin directions
	c.sm.Init(offset, cfg)

	c.sm.SetPindirsConsecutive(c.dataPin, 1, true)
	c.sm.SetPindirsConsecutive(c.clockPin, 1, true)
	c.sm.SetPindirsConsecutive(c.latchPin, 1, true)
	c.sm.SetPinsConsecutive(c.dataPin, 1, false)
	c.sm.SetPinsConsecutive(c.clockPin, 1, false)
	c.sm.SetPinsConsecutive(c.latchPin, 1, false)

	c.sm.SetEnabled(true)
	c.ready = true
	return nil
}

// Width returns the segment width
func (c *ShiftChainPIO) Width() int {
	return shiftWords * core.WordBits
}

// Write queues both words; the state machine shifts them and latches
func (c *ShiftChainPIO) Write(words []uint32) error {
	if !c.ready || !c.sm.IsEnabled() {
		return core.ErrOutputUnavailable
	}
	for _, w := range words {
		spins := 0
		for c.sm.IsTxFIFOFull() {
			spins++
			if spins > txSpinLimit {
				return ErrTxStalled
			}
		}
		c.sm.TxPut(w)
	}
	return nil
}

// SetOutputEnabled drives the active-low /OE line
func (c *ShiftChainPIO) SetOutputEnabled(enabled bool) error {
	return c.oe.set(enabled)
}

// Stop halts the state machine and drops queued words. The multiplexer
// calls it when the engine halts on a fault.
func (c *ShiftChainPIO) Stop() {
	c.sm.SetEnabled(false)
	c.sm.ClearFIFOs()
	c.sm.Restart()
	c.ready = false
}

// Name returns the backend name
func (c *ShiftChainPIO) Name() string {
	return "PIO"
}
