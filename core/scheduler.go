package core

import (
	"errors"
	"sync/atomic"

	"floppier/config"
	"floppier/protocol"
)

// Direction of head travel
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// MaxPeriodTicks bounds a half period so counters and configuration stay 16-bit
const MaxPeriodTicks = 65535

var ErrLineRange = errors.New("drive line outside shift-register bank")

// PeriodTicks converts a tone frequency to the number of ticks between step
// line toggles, rounded to nearest: tickRate / (2 * frequency).
func PeriodTicks(tickRateHz, milliHz uint32) (uint32, error) {
	if milliHz == 0 {
		return 0, ErrOutOfRange
	}
	num := uint64(tickRateHz) * 1000
	den := 2 * uint64(milliHz)
	period := (num + den/2) / den
	if period == 0 || period > MaxPeriodTicks {
		return 0, ErrOutOfRange
	}
	return uint32(period), nil
}

// drive is one scheduled drive. target and reset are the only fields the
// command path writes; everything below them belongs to the tick.
type drive struct {
	cfg config.Drive

	target uint32 // atomic: half period in ticks, 0 when silent
	reset  uint32 // atomic: 1 requests re-home on the next tick

	period    uint32
	ticks     uint32
	position  uint16
	direction Direction
	stepLevel bool
	active    bool
}

// DriveStatus is a consistent snapshot of one drive
type DriveStatus struct {
	Address     uint8
	Position    uint16
	Direction   Direction
	PeriodTicks uint32
	Active      bool
}

// Scheduler advances every drive from the periodic tick
type Scheduler struct {
	drives   []drive
	mux      *Multiplexer
	tickRate uint32
	tick     uint32
}

// NewScheduler creates the drives from the table and writes their idle
// line levels into the bank: step low, direction forward, deselected.
func NewScheduler(drives []config.Drive, tickRateHz uint32, mux *Multiplexer) (*Scheduler, error) {
	s := &Scheduler{
		drives:   make([]drive, len(drives)),
		mux:      mux,
		tickRate: tickRateHz,
	}
	lines := mux.Lines()
	for i, cfg := range drives {
		for _, line := range [...]int{cfg.StepLine, cfg.DirectionLine, cfg.SelectLine} {
			if line < 0 || line >= lines {
				return nil, ErrLineRange
			}
		}
		d := &s.drives[i]
		d.cfg = cfg
		s.writeStep(d)
		s.writeDirection(d)
		s.writeSelect(d)
	}
	return s, nil
}

// Len returns the number of drives
func (s *Scheduler) Len() int {
	return len(s.drives)
}

// TickRate returns the tick frequency in Hz
func (s *Scheduler) TickRate() uint32 {
	return s.tickRate
}

// TickCount returns the number of ticks run
func (s *Scheduler) TickCount() uint32 {
	return atomic.LoadUint32(&s.tick)
}

// Index finds a drive by its configured address
func (s *Scheduler) Index(address uint8) (int, bool) {
	for i := range s.drives {
		if s.drives[i].cfg.Address == address {
			return i, true
		}
	}
	return 0, false
}

// Matches reports whether drive i is selected by addr
func (s *Scheduler) Matches(i int, addr protocol.Address) bool {
	cfg := &s.drives[i].cfg
	switch addr.Mode {
	case protocol.AddressSingle:
		return cfg.Address == addr.ID
	case protocol.AddressGroup:
		return cfg.Group == addr.ID
	case protocol.AddressBroadcast:
		return true
	}
	return false
}

// SetTarget makes drive i sound with the given half period, or silences it
// when period is 0. Takes effect on the next tick.
func (s *Scheduler) SetTarget(i int, period uint32) {
	atomic.StoreUint32(&s.drives[i].target, period)
}

// RequestReset silences drive i and re-homes it on the next tick
func (s *Scheduler) RequestReset(i int) {
	d := &s.drives[i]
	atomic.StoreUint32(&d.target, 0)
	atomic.StoreUint32(&d.reset, 1)
}

// SilenceAll silences every drive
func (s *Scheduler) SilenceAll() {
	for i := range s.drives {
		atomic.StoreUint32(&s.drives[i].target, 0)
	}
}

// Status returns a snapshot of drive i that is never torn by the tick
func (s *Scheduler) Status(i int) DriveStatus {
	state := disableInterrupts()
	d := &s.drives[i]
	st := DriveStatus{
		Address:     d.cfg.Address,
		Position:    d.position,
		Direction:   d.direction,
		PeriodTicks: d.period,
		Active:      d.active,
	}
	restoreInterrupts(state)
	return st
}

// Tick advances every drive by one tick and reports whether any output
// line changed. Called from the timer interrupt: it must not allocate.
func (s *Scheduler) Tick() bool {
	changed := false
	for i := range s.drives {
		if s.tickDrive(&s.drives[i]) {
			changed = true
		}
	}
	atomic.AddUint32(&s.tick, 1)
	return changed
}

func (s *Scheduler) tickDrive(d *drive) bool {
	changed := false

	if atomic.LoadUint32(&d.reset) != 0 {
		atomic.StoreUint32(&d.reset, 0)
		d.position = 0
		d.ticks = 0
		if d.stepLevel {
			d.stepLevel = false
			s.writeStep(d)
			changed = true
		}
		if d.direction != Forward {
			d.direction = Forward
			s.writeDirection(d)
			changed = true
		}
	}

	if target := atomic.LoadUint32(&d.target); target != d.period {
		d.period = target
		d.ticks = 0
		if active := target != 0; active != d.active {
			d.active = active
			s.writeSelect(d)
			changed = true
		}
	}

	if !d.active {
		return changed
	}

	d.ticks++
	if d.ticks < d.period {
		return changed
	}
	d.ticks = 0
	s.step(d)
	return true
}

// step moves the head one position and turns around at either end
func (s *Scheduler) step(d *drive) {
	if d.direction == Forward {
		d.position++
	} else {
		d.position--
	}
	d.stepLevel = !d.stepLevel
	s.writeStep(d)

	switch {
	case d.direction == Forward && d.position >= d.cfg.MaxPosition:
		d.direction = Reverse
		s.writeDirection(d)
	case d.direction == Reverse && d.position == 0:
		d.direction = Forward
		s.writeDirection(d)
	}
}

func (s *Scheduler) writeStep(d *drive) {
	s.mux.SetLine(d.cfg.StepLine, d.stepLevel != d.cfg.InvertStep)
}

func (s *Scheduler) writeDirection(d *drive) {
	s.mux.SetLine(d.cfg.DirectionLine, (d.direction == Reverse) != d.cfg.InvertDirection)
}

func (s *Scheduler) writeSelect(d *drive) {
	s.mux.SetLine(d.cfg.SelectLine, d.active != d.cfg.InvertSelect)
}
