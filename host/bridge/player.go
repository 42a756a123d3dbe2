package bridge

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is a note message at an absolute offset into a song
type Event struct {
	Track   int
	At      time.Duration
	Message midi.Message
}

// ReadFile loads the note events of a standard MIDI file in time order
func ReadFile(path string) ([]Event, error) {
	return collect(smf.ReadTracks(path), path)
}

// ReadFrom loads the note events of a standard MIDI file from r
func ReadFrom(r io.Reader) ([]Event, error) {
	return collect(smf.ReadTracksFrom(r), "stream")
}

func collect(tr *smf.TracksReader, name string) ([]Event, error) {
	var events []Event
	tr.Do(func(ev smf.TrackEvent) {
		msg := midi.Message(ev.Message)
		var ch, key, vel uint8
		if !msg.GetNoteStart(&ch, &key, &vel) && !msg.GetNoteEnd(&ch, &key) {
			return
		}
		events = append(events, Event{
			Track:   ev.TrackNo,
			At:      time.Duration(ev.AbsMicroSeconds) * time.Microsecond,
			Message: append(midi.Message(nil), msg...),
		})
	})
	if err := tr.Error(); err != nil {
		return nil, fmt.Errorf("failed to read midi file %s: %w", name, err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	return events, nil
}

// Player replays events through a bridge in real time
type Player struct {
	Bridge *Bridge

	// Sleep waits for d or until ctx ends; nil uses a timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Play sends every event at its offset, then silences the drives.
// Cancelling ctx stops playback and still silences the drives.
func (p *Player) Play(ctx context.Context, events []Event) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	var at time.Duration
	for _, ev := range events {
		if ev.At > at {
			if err = sleep(ctx, ev.At-at); err != nil {
				break
			}
			at = ev.At
		}
		if err = p.Bridge.Handle(ev.Track, ev.Message); err != nil {
			break
		}
	}
	if rerr := p.Bridge.Release(); err == nil {
		err = rerr
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
