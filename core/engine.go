package core

import (
	"sync/atomic"

	"floppier/config"
	"floppier/protocol"
)

// Engine owns the decoder, dispatcher, scheduler and multiplexer of one
// device. Receive and Poll belong to the command loop; Tick belongs to the
// timer interrupt.
type Engine struct {
	cfg   *config.Config
	mux   *Multiplexer
	sched *Scheduler
	disp  *Dispatcher
	dec   *protocol.Decoder
	diag  *Diagnostics

	tickTimer Timer
	tickUS    uint32
	ticking   bool

	faulted       uint32 // atomic
	fault         error
	faultReported bool
}

// NewEngine builds the engine over the given chain segments, in bank order.
// A nil diag discards diagnostics text.
func NewEngine(cfg *config.Config, segments []ShiftChain, diag *Diagnostics) (*Engine, error) {
	if diag == nil {
		diag = NewDiagnostics(nil)
	}
	if cfg.TickRateHz == 0 {
		return nil, ErrOutOfRange
	}

	mux := NewMultiplexer(segments)
	sched, err := NewScheduler(cfg.Drives, cfg.TickRateHz, mux)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		mux:    mux,
		sched:  sched,
		disp:   NewDispatcher(sched, diag, cfg),
		dec:    protocol.NewDecoder(cfg.DecoderBufferSize),
		diag:   diag,
		tickUS: MicrosecondClock / cfg.TickRateHz,
	}
	e.tickTimer.Handler = e.onTickTimer
	return e, nil
}

// Start initializes the segments, latches the idle line levels and enables
// the register outputs
func (e *Engine) Start() error {
	if err := e.mux.Init(); err != nil {
		return e.halt(err)
	}
	if err := e.mux.Flush(); err != nil {
		return e.halt(err)
	}
	if err := e.mux.SetOutputEnabled(true); err != nil {
		return e.halt(err)
	}
	e.diag.Println("[ENGINE] " + itoa(e.sched.Len()) + " drives on " +
		itoa(e.mux.Lines()) + " lines, tick " + utoa(e.tickUS) + "us")
	return nil
}

// Receive feeds bytes from the link and dispatches every complete command.
// Returns the number of commands dispatched.
func (e *Engine) Receive(p []byte) int {
	if e.Faulted() {
		return 0
	}
	dispatched := 0
	for len(p) > 0 {
		n := e.dec.Write(p)
		p = p[n:]
		dispatched += e.drain()
		if n == 0 && len(p) > 0 {
			e.diag.Record(EvtInputOverflow, e.sched.TickCount(), 0, uint32(len(p)))
			e.dec.Reset()
			break
		}
	}
	return dispatched
}

// drain decodes and dispatches until the decoder needs more bytes
func (e *Engine) drain() int {
	dispatched := 0
	for {
		cmd, err := e.dec.Next()
		switch err {
		case nil:
			e.disp.Dispatch(cmd)
			dispatched++
			continue
		case protocol.ErrTruncated:
			return dispatched
		case protocol.ErrVersionMismatch:
			e.diag.Record(EvtVersionMismatch, e.sched.TickCount(), e.dec.LastVersion, uint32(protocol.SchemaVersion))
		default:
			e.diag.Record(EvtMalformedFrame, e.sched.TickCount(), 0, uint32(e.dec.Buffered()))
		}
	}
}

// Dispatch applies a command directly, bypassing the decoder
func (e *Engine) Dispatch(cmd protocol.Command) {
	if !e.Faulted() {
		e.disp.Dispatch(cmd)
	}
}

// Tick advances the scheduler and flushes the bank at most once
func (e *Engine) Tick() {
	if atomic.LoadUint32(&e.faulted) != 0 {
		return
	}
	if !e.sched.Tick() && !e.mux.Dirty() {
		return
	}
	if err := e.mux.Flush(); err != nil {
		e.halt(err)
	}
}

// TickTimer arms the periodic tick to first fire one period after now.
// Schedule the returned timer on the queue the alarm interrupt dispatches.
func (e *Engine) TickTimer(now uint32) *Timer {
	e.ticking = true
	e.tickTimer.WakeTime = now + e.tickUS
	return &e.tickTimer
}

func (e *Engine) onTickTimer(t *Timer) uint8 {
	e.Tick()
	if e.Faulted() {
		e.ticking = false
		return SF_DONE
	}
	t.WakeTime += e.tickUS
	return SF_RESCHEDULE
}

// halt silences every drive, disables the register outputs, stops the
// segments and the tick. Safe from the interrupt.
func (e *Engine) halt(err error) error {
	if atomic.LoadUint32(&e.faulted) != 0 {
		return e.fault
	}
	e.fault = err
	e.sched.SilenceAll()
	e.mux.SetOutputEnabled(false)
	e.mux.Stop()

	var segment uint8
	if hw, ok := err.(*HardwareError); ok {
		segment = uint8(hw.Segment)
	}
	e.diag.Record(EvtHardwareFault, e.sched.TickCount(), segment, 0)
	atomic.StoreUint32(&e.faulted, 1)
	return err
}

// Faulted reports whether the engine stopped on a hardware fault
func (e *Engine) Faulted() bool {
	return atomic.LoadUint32(&e.faulted) != 0
}

// Err returns the fault that halted the engine, if any
func (e *Engine) Err() error {
	if !e.Faulted() {
		return nil
	}
	return e.fault
}

// Poll runs command-loop housekeeping. It reports a hardware fault once and
// returns ErrFaulted from then on.
func (e *Engine) Poll() error {
	if !e.Faulted() {
		return nil
	}
	if !e.faultReported {
		e.faultReported = true
		e.diag.Println("[ENGINE] halted: " + e.fault.Error())
		e.diag.Dump()
	}
	return ErrFaulted
}

// Status returns a snapshot of the drive with the given address
func (e *Engine) Status(address uint8) (DriveStatus, bool) {
	i, ok := e.sched.Index(address)
	if !ok {
		return DriveStatus{}, false
	}
	return e.sched.Status(i), true
}

// TickPeriodUS returns the tick period in microseconds
func (e *Engine) TickPeriodUS() uint32 {
	return e.tickUS
}

// Diagnostics returns the engine's diagnostics sink
func (e *Engine) Diagnostics() *Diagnostics {
	return e.diag
}

// Multiplexer returns the engine's output bank
func (e *Engine) Multiplexer() *Multiplexer {
	return e.mux
}
