// Package bridge turns MIDI note events into drive commands.
package bridge

import (
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"floppier/protocol"
)

// LiveTrack is the track number given to events that do not come from a file
const LiveTrack = -1

// Sender delivers commands to the drive controller
type Sender interface {
	Send(cmd protocol.Command) error
}

type voice struct {
	key     uint8
	playing bool
}

// Bridge tracks which key each routed drive is playing and emits
// NoteOn/NoteOff commands as MIDI notes start and end.
type Bridge struct {
	mu     sync.Mutex
	song   Song
	voices [][]voice
	send   Sender
	log    *slog.Logger

	dropped uint64
}

// New creates a bridge for song writing to send
func New(song *Song, send Sender, logger *slog.Logger) (*Bridge, error) {
	if err := song.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		song:   *song,
		voices: make([][]voice, len(song.Routes)),
		send:   send,
		log:    logger,
	}
	for i, r := range song.Routes {
		b.voices[i] = make([]voice, len(r.Drives))
	}
	return b, nil
}

// Handle applies one MIDI message from track. Messages other than note
// start and note end are ignored.
func (b *Bridge) Handle(track int, msg midi.Message) error {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return b.noteStart(track, ch, key)
	case msg.GetNoteEnd(&ch, &key):
		return b.noteEnd(track, ch, key)
	default:
		b.log.Debug("bridge: unhandled message", "msg", msg.String())
		return nil
	}
}

func (b *Bridge) noteStart(track int, ch, key uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	folded, ok := FoldKey(key, b.song.MinKey, b.song.MaxKey)
	if !ok {
		b.dropped++
		b.log.Warn("bridge: key out of range", "key", KeyName(key))
		return nil
	}
	if folded != key {
		b.log.Debug("bridge: key folded", "key", KeyName(key), "played", KeyName(folded))
	}
	mHz := NoteFrequency(folded)

	for i := range b.song.Routes {
		r := &b.song.Routes[i]
		if !r.matches(track, ch) {
			continue
		}
		voices := b.voices[i]
		switch b.song.ParallelMode {
		case Collapse:
			if voices[0].playing {
				b.dropped++
				continue
			}
			for d := range voices {
				voices[d] = voice{key: key, playing: true}
				if err := b.sendLocked(protocol.NoteOn(protocol.Single(r.Drives[d]), mHz)); err != nil {
					return err
				}
			}
		case Distribute:
			d := freeVoice(voices)
			if d < 0 {
				b.dropped++
				b.log.Debug("bridge: no free drive", "channel", ch, "key", KeyName(key))
				continue
			}
			voices[d] = voice{key: key, playing: true}
			if err := b.sendLocked(protocol.NoteOn(protocol.Single(r.Drives[d]), mHz)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bridge) noteEnd(track int, ch, key uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.song.Routes {
		r := &b.song.Routes[i]
		if !r.matches(track, ch) {
			continue
		}
		for d, v := range b.voices[i] {
			if !v.playing || v.key != key {
				continue
			}
			b.voices[i][d] = voice{}
			if err := b.sendLocked(protocol.NoteOff(protocol.Single(r.Drives[d]))); err != nil {
				return err
			}
		}
	}
	return nil
}

func freeVoice(voices []voice) int {
	for d, v := range voices {
		if !v.playing {
			return d
		}
	}
	return -1
}

// Release silences every drive and forgets all held notes
func (b *Bridge) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.voices {
		for d := range b.voices[i] {
			b.voices[i][d] = voice{}
		}
	}
	return b.sendLocked(protocol.SilenceAll())
}

// Dropped returns how many note starts found no drive to play on
func (b *Bridge) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Bridge) sendLocked(cmd protocol.Command) error {
	if err := b.send.Send(cmd); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	b.log.Debug("bridge: sent", "kind", cmd.Kind, "mode", cmd.Address.Mode, "id", cmd.Address.ID, "mhz", cmd.FrequencyMilliHz)
	return nil
}
