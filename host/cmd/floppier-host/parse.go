package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"floppier/host/bridge"
	"floppier/protocol"
)

// parseAddress accepts "all", "gN" for a group and "N" for a single drive
func parseAddress(s string) (protocol.Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "all" || s == "*" {
		return protocol.Broadcast(), nil
	}
	group := strings.HasPrefix(s, "g")
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "g"), 10, 8)
	if err != nil {
		return protocol.Address{}, fmt.Errorf("bad address %q", s)
	}
	if group {
		return protocol.Group(uint8(n)), nil
	}
	return protocol.Single(uint8(n)), nil
}

var noteOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// parsePitch accepts a frequency in hertz ("440", "261.63") or a note
// name with octave ("A4", "C#3", "Bb2") and returns milli-hertz
func parsePitch(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if hz, err := strconv.ParseFloat(s, 64); err == nil {
		if hz <= 0 || hz*1000 > math.MaxUint32 {
			return 0, fmt.Errorf("frequency %q out of range", s)
		}
		return uint32(math.Round(hz * 1000)), nil
	}

	lower := strings.ToLower(s)
	if len(lower) < 2 {
		return 0, fmt.Errorf("bad pitch %q", s)
	}
	offset, ok := noteOffsets[lower[0]]
	if !ok {
		return 0, fmt.Errorf("bad pitch %q", s)
	}
	rest := lower[1:]
	switch rest[0] {
	case '#':
		offset++
		rest = rest[1:]
	case 'b':
		offset--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("bad pitch %q", s)
	}
	key := (octave+1)*12 + offset
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("pitch %q out of range", s)
	}
	return bridge.NoteFrequency(uint8(key)), nil
}
