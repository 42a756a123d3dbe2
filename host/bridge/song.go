package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ParallelMode decides what a route does with overlapping notes
type ParallelMode string

const (
	// Collapse plays the first held note on every drive of the route and
	// ignores the others until it is released
	Collapse ParallelMode = "collapse"

	// Distribute gives each held note its own free drive
	Distribute ParallelMode = "distribute"
)

// Route sends one MIDI channel to a set of drives
type Route struct {
	// Tracks restricts the route to these file tracks; empty matches all,
	// including live input which has no track
	Tracks []int

	// Channel is the 0-based MIDI channel
	Channel uint8

	// Drives are single drive addresses
	Drives []uint8
}

// Song maps MIDI input onto the drive stack
type Song struct {
	// Path of a standard MIDI file, used by the play command
	Path string

	ParallelMode ParallelMode

	// Notes outside [MinKey, MaxKey] are folded by octaves into range
	MinKey uint8
	MaxKey uint8

	Routes []Route
}

// ErrInvalidSong is wrapped by every Validate failure
var ErrInvalidSong = errors.New("invalid song")

// LoadSong reads a JSON song description
func LoadSong(path string) (*Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read song %s: %w", path, err)
	}
	return ParseSong(data)
}

// ParseSong parses a JSON song description, applies defaults and validates it
func ParseSong(data []byte) (*Song, error) {
	var song Song
	if err := json.Unmarshal(data, &song); err != nil {
		return nil, fmt.Errorf("failed to parse song: %w", err)
	}
	applyDefaults(&song)
	if err := song.Validate(); err != nil {
		return nil, err
	}
	return &song, nil
}

// DefaultSong routes MIDI channel n to drive n for the first drives channels
func DefaultSong(drives int) *Song {
	if drives > 16 {
		drives = 16
	}
	song := &Song{}
	for ch := 0; ch < drives; ch++ {
		song.Routes = append(song.Routes, Route{Channel: uint8(ch), Drives: []uint8{uint8(ch)}})
	}
	applyDefaults(song)
	return song
}

func applyDefaults(song *Song) {
	if song.ParallelMode == "" {
		song.ParallelMode = Collapse
	}
	if song.MinKey == 0 && song.MaxKey == 0 {
		song.MinKey = DefaultMinKey
		song.MaxKey = DefaultMaxKey
	}
}

// Validate checks the routing table
func (s *Song) Validate() error {
	switch s.ParallelMode {
	case Collapse, Distribute:
	default:
		return fmt.Errorf("%w: unknown parallel mode %q", ErrInvalidSong, s.ParallelMode)
	}
	if s.MaxKey > 127 || s.MinKey > s.MaxKey {
		return fmt.Errorf("%w: key range %d..%d", ErrInvalidSong, s.MinKey, s.MaxKey)
	}
	if s.MaxKey-s.MinKey < 11 {
		return fmt.Errorf("%w: key range %d..%d is narrower than an octave", ErrInvalidSong, s.MinKey, s.MaxKey)
	}
	if len(s.Routes) == 0 {
		return fmt.Errorf("%w: no routes", ErrInvalidSong)
	}
	for i, r := range s.Routes {
		if r.Channel > 15 {
			return fmt.Errorf("%w: route %d: channel %d", ErrInvalidSong, i, r.Channel)
		}
		if len(r.Drives) == 0 {
			return fmt.Errorf("%w: route %d has no drives", ErrInvalidSong, i)
		}
		for _, t := range r.Tracks {
			if t < 0 {
				return fmt.Errorf("%w: route %d: track %d", ErrInvalidSong, i, t)
			}
		}
	}
	return nil
}

// matches reports whether the route takes events from track on channel.
// track < 0 is live input.
func (r *Route) matches(track int, channel uint8) bool {
	if r.Channel != channel {
		return false
	}
	if len(r.Tracks) == 0 {
		return true
	}
	for _, t := range r.Tracks {
		if t == track {
			return true
		}
	}
	return false
}
