package core

// WordBits is the number of lines packed per bank word
const WordBits = 32

// Multiplexer holds the state of every output line of the shift-register
// bank. SetLine only changes memory; Flush shifts the whole bank out and
// latches each segment once, so the outputs never show a partial update.
type Multiplexer struct {
	segments []ShiftChain
	offsets  []int // first word of each segment
	faults   []HardwareError
	words    []uint32
	dirty    bool
	flushes  uint32
}

// NewMultiplexer creates a bank spanning every segment in order
func NewMultiplexer(segments []ShiftChain) *Multiplexer {
	m := &Multiplexer{
		segments: segments,
		offsets:  make([]int, len(segments)),
		faults:   make([]HardwareError, len(segments)),
	}
	total := 0
	for i, seg := range segments {
		m.offsets[i] = total
		total += seg.Width() / WordBits
	}
	m.words = make([]uint32, total)
	return m
}

// Lines returns the number of addressable lines
func (m *Multiplexer) Lines() int {
	return len(m.words) * WordBits
}

// SetLine sets one line's state and marks the bank dirty.
// Indexes come from the validated drive table; out of range panics.
func (m *Multiplexer) SetLine(index int, state bool) {
	mask := uint32(1) << (uint(index) % WordBits)
	w := &m.words[index/WordBits]
	if state {
		*w |= mask
	} else {
		*w &^= mask
	}
	m.dirty = true
}

// Line returns a line's pending state
func (m *Multiplexer) Line(index int) bool {
	return m.words[index/WordBits]&(1<<(uint(index)%WordBits)) != 0
}

// Dirty reports whether lines changed since the last flush
func (m *Multiplexer) Dirty() bool {
	return m.dirty
}

// Words exposes the packed bank, word 0 first
func (m *Multiplexer) Words() []uint32 {
	return m.words
}

// Flushes returns how many flushes have been issued
func (m *Multiplexer) Flushes() uint32 {
	return m.flushes
}

// Flush writes the bank to every segment. The bank stays dirty on failure.
func (m *Multiplexer) Flush() error {
	m.flushes++
	for i, seg := range m.segments {
		start := m.offsets[i]
		end := start + seg.Width()/WordBits
		if err := seg.Write(m.words[start:end]); err != nil {
			return m.fault(i, err)
		}
	}
	m.dirty = false
	return nil
}

// fault reuses a per-segment error so the tick path does not allocate
func (m *Multiplexer) fault(segment int, err error) error {
	f := &m.faults[segment]
	f.Segment = segment
	f.Err = err
	return f
}

// SetOutputEnabled drives every segment's output-enable line. All segments
// are attempted; the first failure is returned.
func (m *Multiplexer) SetOutputEnabled(enabled bool) error {
	var first error
	for i, seg := range m.segments {
		if err := seg.SetOutputEnabled(enabled); err != nil && first == nil {
			first = m.fault(i, err)
		}
	}
	return first
}

// Init initializes every segment
func (m *Multiplexer) Init() error {
	for i, seg := range m.segments {
		if err := seg.Init(); err != nil {
			return m.fault(i, err)
		}
	}
	return nil
}

// stopper is implemented by segments with hardware to shut down on a fault
type stopper interface {
	Stop()
}

// Stop shuts down every segment that supports it
func (m *Multiplexer) Stop() {
	for _, seg := range m.segments {
		if s, ok := seg.(stopper); ok {
			s.Stop()
		}
	}
}
