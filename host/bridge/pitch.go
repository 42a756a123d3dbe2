package bridge

import (
	"math"
	"strconv"
)

// Key range the default firmware tick can play (C0..C8)
const (
	DefaultMinKey uint8 = 12
	DefaultMaxKey uint8 = 108
)

const (
	concertKey     = 69
	concertMilliHz = 440000
)

// NoteFrequency returns the equal-tempered frequency of a MIDI key in
// milli-hertz, with key 69 at 440 Hz.
func NoteFrequency(key uint8) uint32 {
	return uint32(math.Round(concertMilliHz * math.Pow(2, float64(int(key)-concertKey)/12)))
}

// FoldKey moves key by whole octaves until it lies in [lo, hi].
// It reports false when the range is narrower than an octave and no
// octave of key fits.
func FoldKey(key, lo, hi uint8) (uint8, bool) {
	if lo > hi {
		return 0, false
	}
	k := int(key)
	for k < int(lo) {
		k += 12
	}
	for k > int(hi) {
		k -= 12
	}
	if k < int(lo) || k > int(hi) {
		return 0, false
	}
	return uint8(k), true
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// KeyName returns the scientific pitch name of a MIDI key, e.g. 69 -> "A4"
func KeyName(key uint8) string {
	octave := int(key)/12 - 1
	return noteNames[key%12] + strconv.Itoa(octave)
}
