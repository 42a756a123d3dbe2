package core

// ShiftChain is one shift-register chain segment: a serial data line, a
// shift clock and a latch shared by every register in the segment.
// Implementations can use PIO, bit-banged GPIO or a test double.
type ShiftChain interface {
	// Init configures the segment's pins. Outputs stay disabled.
	Init() error

	// Width returns the number of parallel outputs, a multiple of 32
	Width() int

	// Write shifts every word, first word and least significant bit first,
	// then pulses the latch once. Must not allocate or block unboundedly:
	// it is called from the tick interrupt.
	Write(words []uint32) error

	// SetOutputEnabled drives the registers' output-enable line
	SetOutputEnabled(enabled bool) error

	// Name returns backend implementation name
	Name() string
}
