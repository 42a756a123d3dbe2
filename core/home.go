package core

// Homing drives the hardware directly and must finish before the tick
// timer starts.

// homeBegin selects every drive and points it at track 0
func (s *Scheduler) homeBegin() uint16 {
	var longest uint16
	for i := range s.drives {
		d := &s.drives[i]
		d.active = true
		d.direction = Reverse
		s.writeSelect(d)
		s.writeDirection(d)
		if d.cfg.MaxPosition > longest {
			longest = d.cfg.MaxPosition
		}
	}
	return longest
}

// homeStep toggles the step line of every drive that still has travel left
func (s *Scheduler) homeStep(n uint16) {
	for i := range s.drives {
		d := &s.drives[i]
		if n < d.cfg.MaxPosition {
			d.stepLevel = !d.stepLevel
			s.writeStep(d)
		}
	}
}

// homeEnd leaves every drive idle at position 0
func (s *Scheduler) homeEnd() {
	for i := range s.drives {
		d := &s.drives[i]
		d.active = false
		d.period = 0
		d.ticks = 0
		d.position = 0
		d.direction = Forward
		d.stepLevel = false
		s.writeStep(d)
		s.writeDirection(d)
		s.writeSelect(d)
	}
}

// Home sweeps every drive in reverse for its full travel, pausing HomeStepDelayUS
// between steps, so the heads rest against track 0 when ticking begins.
func (e *Engine) Home(sleep func(us uint32)) error {
	if e.ticking {
		return ErrBusy
	}
	e.diag.Println("[HOME] sweeping " + itoa(e.sched.Len()) + " drives")

	steps := e.sched.homeBegin()
	if err := e.mux.Flush(); err != nil {
		return e.halt(err)
	}
	for n := uint16(0); n < steps; n++ {
		e.sched.homeStep(n)
		if err := e.mux.Flush(); err != nil {
			return e.halt(err)
		}
		sleep(e.cfg.HomeStepDelayUS)
	}

	e.sched.homeEnd()
	if err := e.mux.Flush(); err != nil {
		return e.halt(err)
	}
	e.diag.Println("[HOME] done")
	return nil
}
