package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Backend names
const (
	BackendPIO  = "pio"
	BackendGPIO = "gpio"
)

// Defaults
const (
	DefaultTickRateHz          = 50000 // 20us tick
	DefaultMinFrequencyMilliHz = 16352 // C0
	DefaultMaxFrequencyMilliHz = 4186009
	DefaultHomeStepDelayUS     = 3000
	DefaultDecoderBufferSize   = 256
	DefaultMaxPosition         = 154
	DefaultPIOClockDiv         = 4

	PIOSegmentWidth  = 64
	GPIOSegmentWidth = 32

	timerClockHz = 1000000
	maxPeriod    = 65535
)

var ErrInvalid = errors.New("invalid configuration")

// LoadConfig parses JSON configuration, applies defaults and validates it
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	if config.TickRateHz == 0 {
		config.TickRateHz = DefaultTickRateHz
	}
	if config.MinFrequencyMilliHz == 0 {
		config.MinFrequencyMilliHz = DefaultMinFrequencyMilliHz
	}
	if config.MaxFrequencyMilliHz == 0 {
		config.MaxFrequencyMilliHz = DefaultMaxFrequencyMilliHz
	}
	if config.HomeStepDelayUS == 0 {
		config.HomeStepDelayUS = DefaultHomeStepDelayUS
	}
	if config.DecoderBufferSize == 0 {
		config.DecoderBufferSize = DefaultDecoderBufferSize
	}

	for i := range config.Segments {
		seg := &config.Segments[i]
		if seg.Backend == "" {
			seg.Backend = BackendPIO
		}
		if seg.Width == 0 {
			if seg.Backend == BackendGPIO {
				seg.Width = GPIOSegmentWidth
			} else {
				seg.Width = PIOSegmentWidth
			}
		}
		if seg.ClockDiv == 0 {
			seg.ClockDiv = DefaultPIOClockDiv
		}
	}

	for i := range config.Drives {
		if config.Drives[i].MaxPosition == 0 {
			config.Drives[i].MaxPosition = DefaultMaxPosition
		}
	}
}

// Validate checks the configuration for values the firmware cannot run with
func (c *Config) Validate() error {
	if c.TickRateHz == 0 || c.TickRateHz > timerClockHz || timerClockHz%c.TickRateHz != 0 {
		return fmt.Errorf("%w: tick rate %d Hz does not divide %d Hz", ErrInvalid, c.TickRateHz, timerClockHz)
	}
	if c.MinFrequencyMilliHz > c.MaxFrequencyMilliHz {
		return fmt.Errorf("%w: frequency range %d..%d mHz is empty", ErrInvalid,
			c.MinFrequencyMilliHz, c.MaxFrequencyMilliHz)
	}
	// the fastest note must still take at least one tick per half period
	if uint64(c.TickRateHz)*1000 < uint64(c.MaxFrequencyMilliHz) {
		return fmt.Errorf("%w: %d mHz is beyond a %d Hz tick", ErrInvalid, c.MaxFrequencyMilliHz, c.TickRateHz)
	}
	if c.MinFrequencyMilliHz > 0 && uint64(c.TickRateHz)*1000/(2*uint64(c.MinFrequencyMilliHz)) > maxPeriod {
		return fmt.Errorf("%w: %d mHz needs a period beyond %d ticks", ErrInvalid, c.MinFrequencyMilliHz, maxPeriod)
	}
	if c.DecoderBufferSize < 0 {
		return fmt.Errorf("%w: negative decoder buffer", ErrInvalid)
	}

	if len(c.Segments) == 0 {
		return fmt.Errorf("%w: no shift-register segments", ErrInvalid)
	}
	for i, seg := range c.Segments {
		if err := seg.validate(); err != nil {
			return fmt.Errorf("%w: segment %d: %v", ErrInvalid, i, err)
		}
	}

	if len(c.Drives) == 0 {
		return fmt.Errorf("%w: no drives", ErrInvalid)
	}
	lines := c.Lines()
	used := make(map[int]uint8, 3*len(c.Drives))
	addrs := make(map[uint8]bool, len(c.Drives))
	for _, d := range c.Drives {
		if addrs[d.Address] {
			return fmt.Errorf("%w: duplicate drive address %d", ErrInvalid, d.Address)
		}
		addrs[d.Address] = true

		for _, line := range [...]int{d.StepLine, d.DirectionLine, d.SelectLine} {
			if line < 0 || line >= lines {
				return fmt.Errorf("%w: drive %d line %d outside bank of %d", ErrInvalid, d.Address, line, lines)
			}
			if owner, ok := used[line]; ok {
				return fmt.Errorf("%w: drive %d line %d already used by drive %d", ErrInvalid, d.Address, line, owner)
			}
			used[line] = d.Address
		}
	}
	return nil
}

func (s Segment) validate() error {
	if s.Width <= 0 || s.Width%32 != 0 {
		return fmt.Errorf("width %d is not a multiple of 32", s.Width)
	}
	data, err := ParsePin(s.DataPin)
	if err != nil {
		return fmt.Errorf("data pin: %w", err)
	}
	clock, err := ParsePin(s.ClockPin)
	if err != nil {
		return fmt.Errorf("clock pin: %w", err)
	}
	latch, err := ParsePin(s.LatchPin)
	if err != nil {
		return fmt.Errorf("latch pin: %w", err)
	}
	if data == clock || data == latch || clock == latch {
		return errors.New("data, clock and latch pins must differ")
	}
	if s.OutputEnablePin != "" {
		if _, err := ParsePin(s.OutputEnablePin); err != nil {
			return fmt.Errorf("output enable pin: %w", err)
		}
	}

	switch s.Backend {
	case BackendPIO:
		if s.Width != PIOSegmentWidth {
			return fmt.Errorf("pio backend drives exactly %d lines", PIOSegmentWidth)
		}
		if s.PIOBlock > 1 {
			return fmt.Errorf("pio block %d does not exist", s.PIOBlock)
		}
	case BackendGPIO:
		if s.Width > GPIOSegmentWidth {
			return fmt.Errorf("gpio backend drives at most %d lines", GPIOSegmentWidth)
		}
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	return nil
}

// ParsePin parses a pin name such as "gpio12" or "GP12"
func ParsePin(name string) (uint8, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	var digits string
	switch {
	case strings.HasPrefix(lower, "gpio"):
		digits = lower[4:]
	case strings.HasPrefix(lower, "gp"):
		digits = lower[2:]
	default:
		return 0, fmt.Errorf("pin %q: expected gpioN", name)
	}
	n, err := strconv.ParseUint(digits, 10, 8)
	if err != nil || n > 47 {
		return 0, fmt.Errorf("pin %q: bad pin number", name)
	}
	return uint8(n), nil
}

// DefaultConfig returns eight drives on one PIO segment. Drive k uses bank
// lines 8k (step), 8k+1 (direction) and 8k+2 (select, active low).
func DefaultConfig() *Config {
	config := &Config{
		TickRateHz:          DefaultTickRateHz,
		MinFrequencyMilliHz: DefaultMinFrequencyMilliHz,
		MaxFrequencyMilliHz: DefaultMaxFrequencyMilliHz,
		HomeOnBoot:          true,
		HomeStepDelayUS:     DefaultHomeStepDelayUS,
		DecoderBufferSize:   DefaultDecoderBufferSize,
		Segments: []Segment{
			{
				Backend:         BackendPIO,
				DataPin:         "gpio2",
				ClockPin:        "gpio3",
				LatchPin:        "gpio4",
				OutputEnablePin: "gpio5",
				Width:           PIOSegmentWidth,
				ClockDiv:        DefaultPIOClockDiv,
			},
		},
	}
	for k := 0; k < PIOSegmentWidth/8; k++ {
		config.Drives = append(config.Drives, Drive{
			Address:       uint8(k),
			Group:         uint8(k / 4),
			MaxPosition:   DefaultMaxPosition,
			StepLine:      8 * k,
			DirectionLine: 8*k + 1,
			SelectLine:    8*k + 2,
			InvertSelect:  true,
		})
	}
	return config
}
