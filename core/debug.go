package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event identifies a diagnostic occurrence
type Event uint8

const (
	EvtMalformedFrame Event = iota + 1
	EvtVersionMismatch
	EvtUnsupported
	EvtOutOfRange
	EvtInputOverflow
	EvtHardwareFault
	EvtReset
	evtCount
)

func (e Event) String() string {
	switch e {
	case EvtMalformedFrame:
		return "MALFORMED"
	case EvtVersionMismatch:
		return "VERSION"
	case EvtUnsupported:
		return "UNSUPPORTED"
	case EvtOutOfRange:
		return "OUT_OF_RANGE"
	case EvtInputOverflow:
		return "OVERFLOW"
	case EvtHardwareFault:
		return "HW_FAULT!"
	case EvtReset:
		return "RESET"
	}
	return "UNKNOWN"
}

// DiagEvent is one entry of the diagnostic ring
type DiagEvent struct {
	Event Event
	Tick  uint32 // scheduler tick when recorded
	Arg   uint8  // drive address or segment
	Value uint32 // event-specific
}

const DiagRingSize = 32

// Diagnostics counts protocol and hardware events and keeps the most recent
// ones for post-mortem. Record is safe from the tick interrupt; text output
// only happens from Println and Dump, which belong to the command loop.
type Diagnostics struct {
	writer  DebugWriter
	enabled bool

	counts [evtCount]uint32
	ring   [DiagRingSize]DiagEvent
	head   uint8
}

// NewDiagnostics creates a diagnostics sink. A nil writer discards text.
func NewDiagnostics(writer DebugWriter) *Diagnostics {
	return &Diagnostics{writer: writer, enabled: writer != nil}
}

// SetEnabled toggles text output; counting continues regardless
func (d *Diagnostics) SetEnabled(enabled bool) {
	d.enabled = enabled && d.writer != nil
}

// Println writes a debug line if output is enabled
func (d *Diagnostics) Println(msg string) {
	if d.enabled {
		d.writer(msg)
	}
}

// Record counts evt and stores it in the ring
func (d *Diagnostics) Record(evt Event, tick uint32, arg uint8, value uint32) {
	state := disableInterrupts()
	if evt < evtCount {
		d.counts[evt]++
	}
	d.ring[d.head] = DiagEvent{Event: evt, Tick: tick, Arg: arg, Value: value}
	d.head = (d.head + 1) % DiagRingSize
	restoreInterrupts(state)
}

// Count returns how many times evt was recorded
func (d *Diagnostics) Count(evt Event) uint32 {
	if evt >= evtCount {
		return 0
	}
	state := disableInterrupts()
	n := d.counts[evt]
	restoreInterrupts(state)
	return n
}

// Recent copies the ring, oldest first, into dst and returns the count
func (d *Diagnostics) Recent(dst []DiagEvent) int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := 0
	for i := uint8(0); i < DiagRingSize && n < len(dst); i++ {
		evt := d.ring[(d.head+i)%DiagRingSize]
		if evt.Event == 0 {
			continue
		}
		dst[n] = evt
		n++
	}
	return n
}

// Dump writes counters and the event ring
func (d *Diagnostics) Dump() {
	if !d.enabled {
		return
	}
	d.writer("[DIAG] === Diagnostics ===")
	for evt := Event(1); evt < evtCount; evt++ {
		if n := d.Count(evt); n > 0 {
			d.writer("[DIAG] " + evt.String() + " count=" + utoa(n))
		}
	}

	var events [DiagRingSize]DiagEvent
	n := d.Recent(events[:])
	for _, evt := range events[:n] {
		d.writer("[DIAG] " + evt.Event.String() +
			" tick=" + utoa(evt.Tick) +
			" arg=" + utoa(uint32(evt.Arg)) +
			" v=" + utoa(evt.Value))
	}
	d.writer("[DIAG] === End ===")
}

// Clear resets counters and the ring
func (d *Diagnostics) Clear() {
	state := disableInterrupts()
	d.counts = [evtCount]uint32{}
	d.ring = [DiagRingSize]DiagEvent{}
	d.head = 0
	restoreInterrupts(state)
}
