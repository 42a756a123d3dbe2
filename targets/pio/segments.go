//go:build rp2040 || rp2350

package pio

import (
	"errors"
	"machine"

	"floppier/config"
	"floppier/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

var (
	ErrNoStateMachine = errors.New("no free PIO state machine")
	ErrUnknownBackend = errors.New("unknown shift chain backend")
)

const stateMachinesPerBlock = 4

var (
	// Offset of the shift program per PIO block, loaded once
	programLoaded [2]bool
	programOffset [2]uint8
)

// outputEnable is the optional active-low /OE pin of a segment
type outputEnable struct {
	pin     machine.Pin
	present bool
}

// configure claims the pin and holds the outputs disabled
func (o outputEnable) configure() {
	if !o.present {
		return
	}
	o.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	o.pin.High()
}

func (o outputEnable) set(enabled bool) error {
	if o.present {
		o.pin.Set(!enabled)
	}
	return nil
}

// NewSegments builds one backend per configured segment, in bank order
func NewSegments(segments []config.Segment) ([]core.ShiftChain, error) {
	chains := make([]core.ShiftChain, 0, len(segments))
	for _, seg := range segments {
		chain, err := newSegment(seg)
		if err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

func newSegment(seg config.Segment) (core.ShiftChain, error) {
	data, err := config.ParsePin(seg.DataPin)
	if err != nil {
		return nil, err
	}
	clock, err := config.ParsePin(seg.ClockPin)
	if err != nil {
		return nil, err
	}
	latch, err := config.ParsePin(seg.LatchPin)
	if err != nil {
		return nil, err
	}
	var oe outputEnable
	if seg.OutputEnablePin != "" {
		pin, err := config.ParsePin(seg.OutputEnablePin)
		if err != nil {
			return nil, err
		}
		oe = outputEnable{pin: machine.Pin(pin), present: true}
	}

	switch seg.Backend {
	case config.BackendPIO:
		sm, err := claimSM(seg.PIOBlock)
		if err != nil {
			return nil, err
		}
		return NewShiftChainPIO(sm,
			machine.Pin(data), machine.Pin(clock), machine.Pin(latch), oe, seg.ClockDiv), nil
	case config.BackendGPIO:
		return NewShiftChainGPIO(machine.Pin(data), machine.Pin(clock), machine.Pin(latch), oe, seg.Width), nil
	}
	return nil, ErrUnknownBackend
}

// pioBlock returns PIO0 or PIO1
func pioBlock(pioNum uint8) (*rp2pio.PIO, bool) {
	switch pioNum {
	case 0:
		return rp2pio.PIO0, true
	case 1:
		return rp2pio.PIO1, true
	}
	return nil, false
}

// claimSM claims the first free state machine of a PIO block. The claim
// mask kept by rp2pio is the only record of ownership.
func claimSM(pioNum uint8) (rp2pio.StateMachine, error) {
	block, ok := pioBlock(pioNum)
	if !ok {
		return rp2pio.StateMachine{}, ErrNoStateMachine
	}
	sm, err := block.ClaimStateMachine()
	if err != nil {
		return rp2pio.StateMachine{}, ErrNoStateMachine
	}
	return sm, nil
}

// loadProgram adds the shift program to a PIO block once and shares it
// between that block's state machines
func loadProgram(p *rp2pio.PIO, program []uint16) (uint8, error) {
	idx := p.BlockIndex()
	if programLoaded[idx] {
		return programOffset[idx], nil
	}
	offset, err := p.AddProgram(program, -1)
	if err != nil {
		return 0, err
	}
	programLoaded[idx] = true
	programOffset[idx] = offset
	return offset, nil
}

// AllocationMap renders the state machine claims of both blocks,
// e.g. "PIO0 XX.. PIO1 ....".
func AllocationMap() string {
	buf := make([]byte, 0, 2*(5+stateMachinesPerBlock))
	for n := uint8(0); n < 2; n++ {
		block, _ := pioBlock(n)
		if n > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, 'P', 'I', 'O', '0'+n, ' ')
		for i := uint8(0); i < stateMachinesPerBlock; i++ {
			if block.StateMachine(i).IsClaimed() {
				buf = append(buf, 'X')
			} else {
				buf = append(buf, '.')
			}
		}
	}
	return string(buf)
}
