package core

import (
	"errors"
	"testing"

	"floppier/config"
)

var errStuck = errors.New("latch stuck")

// fakeChain records every latched bank image
type fakeChain struct {
	width     int
	inits     int
	writes    int
	latched   []uint32
	history   [][]uint32
	record    bool
	enabled   bool
	failAfter int // fail writes once this many succeeded; -1 never
}

func newFakeChain(width int) *fakeChain {
	return &fakeChain{width: width, failAfter: -1, record: true}
}

func (c *fakeChain) Init() error  { c.inits++; return nil }
func (c *fakeChain) Width() int   { return c.width }
func (c *fakeChain) Name() string { return "fake" }

func (c *fakeChain) Write(words []uint32) error {
	if c.failAfter >= 0 && c.writes >= c.failAfter {
		return errStuck
	}
	c.writes++
	if c.record {
		c.latched = append(c.latched[:0], words...)
		c.history = append(c.history, append([]uint32(nil), words...))
	}
	return nil
}

func (c *fakeChain) SetOutputEnabled(enabled bool) error {
	c.enabled = enabled
	return nil
}

// stoppableChain is a fakeChain whose backend can be shut down
type stoppableChain struct {
	*fakeChain
	stops int
}

func (c *stoppableChain) Stop() { c.stops++ }

func (c *fakeChain) line(index int) bool {
	return c.latched[index/WordBits]&(1<<(uint(index)%WordBits)) != 0
}

// testConfig lays drive k on lines 8k (step), 8k+1 (dir), 8k+2 (select, active low)
func testConfig(drives int, maxPosition uint16, tickRate uint32) *config.Config {
	cfg := &config.Config{
		TickRateHz:          tickRate,
		MinFrequencyMilliHz: 1000,
		MaxFrequencyMilliHz: 5000000,
		HomeStepDelayUS:     3000,
		Segments:            []config.Segment{{Backend: config.BackendPIO, Width: 64}},
	}
	for k := 0; k < drives; k++ {
		cfg.Drives = append(cfg.Drives, config.Drive{
			Address:       uint8(k),
			Group:         uint8(k % 2),
			MaxPosition:   maxPosition,
			StepLine:      8 * k,
			DirectionLine: 8*k + 1,
			SelectLine:    8*k + 2,
			InvertSelect:  true,
		})
	}
	return cfg
}

func newTestEngine(t testing.TB, cfg *config.Config) (*Engine, *fakeChain) {
	t.Helper()
	chain := newFakeChain(64)
	e, err := NewEngine(cfg, []ShiftChain{chain}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e, chain
}
