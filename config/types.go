package config

// Config is the device configuration: tick timing, the shift-register
// segments and the drive table.
type Config struct {
	// Scheduler tick rate. Must divide the 1 MHz hardware timer.
	TickRateHz uint32

	// Accepted NoteOn range, milli-hertz
	MinFrequencyMilliHz uint32
	MaxFrequencyMilliHz uint32

	// Physically sweep every drive to track 0 before ticking starts
	HomeOnBoot      bool
	HomeStepDelayUS uint32

	// Bytes buffered between the USB link and the frame decoder
	DecoderBufferSize int

	Segments []Segment
	Drives   []Drive
}

// Segment is one 74HC595 chain driven by its own data/clock/latch lines.
// Bank lines are numbered across segments in order. Within a segment,
// line 0 is the first bit shifted and so lands on the register furthest
// from the data pin.
type Segment struct {
	Backend         string // "pio" or "gpio"
	DataPin         string // e.g. "gpio2"
	ClockPin        string
	LatchPin        string
	OutputEnablePin string // active low; empty if tied low
	Width           int    // parallel outputs, multiple of 32
	PIOBlock        uint8  // 0 or 1
	ClockDiv        uint16 // PIO clock divider
}

// Drive maps one logical drive onto bank lines
type Drive struct {
	Address     uint8
	Group       uint8
	MaxPosition uint16 // step positions are 0..MaxPosition

	StepLine      int
	DirectionLine int
	SelectLine    int

	InvertStep      bool
	InvertDirection bool
	InvertSelect    bool // select lines are usually active low
}

// Lines returns the total bank width across segments
func (c *Config) Lines() int {
	total := 0
	for _, seg := range c.Segments {
		total += seg.Width
	}
	return total
}
