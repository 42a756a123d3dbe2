package core

import (
	"floppier/config"
	"floppier/protocol"
)

// Dispatcher applies decoded commands to the scheduler in arrival order.
// It runs in the command loop, never in the tick interrupt.
type Dispatcher struct {
	sched *Scheduler
	diag  *Diagnostics

	minMilliHz uint32
	maxMilliHz uint32
}

// NewDispatcher creates a dispatcher accepting NoteOn frequencies in the
// configured range
func NewDispatcher(sched *Scheduler, diag *Diagnostics, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		sched:      sched,
		diag:       diag,
		minMilliHz: cfg.MinFrequencyMilliHz,
		maxMilliHz: cfg.MaxFrequencyMilliHz,
	}
}

// Dispatch applies one command. Rejected commands change nothing and are
// counted in diagnostics.
func (d *Dispatcher) Dispatch(cmd protocol.Command) {
	err := d.apply(cmd)
	switch err {
	case nil:
	case ErrOutOfRange:
		d.diag.Record(EvtOutOfRange, d.sched.TickCount(), cmd.Address.ID, cmd.FrequencyMilliHz)
	case ErrUnsupported:
		d.diag.Record(EvtUnsupported, d.sched.TickCount(), 0, uint32(cmd.Kind))
	}
}

func (d *Dispatcher) apply(cmd protocol.Command) error {
	switch cmd.Kind {
	case protocol.KindNoteOn:
		if cmd.FrequencyMilliHz < d.minMilliHz || cmd.FrequencyMilliHz > d.maxMilliHz {
			return ErrOutOfRange
		}
		period, err := PeriodTicks(d.sched.TickRate(), cmd.FrequencyMilliHz)
		if err != nil {
			return err
		}
		return d.each(cmd.Address, func(i int) { d.sched.SetTarget(i, period) })

	case protocol.KindNoteOff:
		return d.each(cmd.Address, func(i int) { d.sched.SetTarget(i, 0) })

	case protocol.KindReset:
		if err := d.each(cmd.Address, d.sched.RequestReset); err != nil {
			return err
		}
		d.diag.Record(EvtReset, d.sched.TickCount(), cmd.Address.ID, uint32(cmd.Address.Mode))
		return nil

	case protocol.KindSilenceAll:
		d.sched.SilenceAll()
		return nil
	}
	return ErrUnsupported
}

// each calls fn for every drive matching addr. An address matching no drive
// is out of range.
func (d *Dispatcher) each(addr protocol.Address, fn func(i int)) error {
	matched := 0
	for i := 0; i < d.sched.Len(); i++ {
		if d.sched.Matches(i, addr) {
			fn(i)
			matched++
		}
	}
	if matched == 0 {
		return ErrOutOfRange
	}
	return nil
}
