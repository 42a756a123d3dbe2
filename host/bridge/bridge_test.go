package bridge

import (
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"floppier/protocol"
)

func newTestBridge(t *testing.T, song *Song) (*Bridge, *recordingSender) {
	t.Helper()
	rec := &recordingSender{}
	applyDefaults(song)
	b, err := New(song, rec, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, rec
}

func TestBridgeNoteOnOff(t *testing.T) {
	b, rec := newTestBridge(t, DefaultSong(4))

	if err := b.Handle(LiveTrack, midi.NoteOn(2, 69, 100)); err != nil {
		t.Fatal(err)
	}
	if err := b.Handle(LiveTrack, midi.NoteOff(2, 69)); err != nil {
		t.Fatal(err)
	}

	want := []protocol.Command{
		protocol.NoteOn(protocol.Single(2), 440000),
		protocol.NoteOff(protocol.Single(2)),
	}
	if len(rec.cmds) != len(want) {
		t.Fatalf("sent %v, want %v", rec.cmds, want)
	}
	for i := range want {
		if rec.cmds[i] != want[i] {
			t.Errorf("cmd %d = %+v, want %+v", i, rec.cmds[i], want[i])
		}
	}
}

func TestBridgeZeroVelocityIsNoteOff(t *testing.T) {
	b, rec := newTestBridge(t, DefaultSong(1))

	b.Handle(LiveTrack, midi.NoteOn(0, 60, 90))
	b.Handle(LiveTrack, midi.NoteOn(0, 60, 0))

	if len(rec.cmds) != 2 || rec.cmds[1].Kind != protocol.KindNoteOff {
		t.Fatalf("sent %v, want NoteOn then NoteOff", rec.cmds)
	}
}

func TestBridgeIgnoresOtherMessages(t *testing.T) {
	b, rec := newTestBridge(t, DefaultSong(1))

	b.Handle(LiveTrack, midi.ControlChange(0, 7, 100))
	b.Handle(LiveTrack, midi.ProgramChange(0, 3))
	b.Handle(LiveTrack, midi.NoteOn(5, 60, 90)) // unrouted channel

	if len(rec.cmds) != 0 {
		t.Errorf("sent %v, want nothing", rec.cmds)
	}
}

func TestBridgeCollapse(t *testing.T) {
	b, rec := newTestBridge(t, &Song{
		ParallelMode: Collapse,
		Routes:       []Route{{Channel: 0, Drives: []uint8{0, 1}}},
	})

	b.Handle(LiveTrack, midi.NoteOn(0, 60, 90))
	b.Handle(LiveTrack, midi.NoteOn(0, 64, 90)) // chord tone ignored
	b.Handle(LiveTrack, midi.NoteOff(0, 64))    // not playing, nothing sent
	b.Handle(LiveTrack, midi.NoteOff(0, 60))

	want := []protocol.Command{
		protocol.NoteOn(protocol.Single(0), NoteFrequency(60)),
		protocol.NoteOn(protocol.Single(1), NoteFrequency(60)),
		protocol.NoteOff(protocol.Single(0)),
		protocol.NoteOff(protocol.Single(1)),
	}
	if len(rec.cmds) != len(want) {
		t.Fatalf("sent %v, want %v", rec.cmds, want)
	}
	for i := range want {
		if rec.cmds[i] != want[i] {
			t.Errorf("cmd %d = %+v, want %+v", i, rec.cmds[i], want[i])
		}
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", b.Dropped())
	}
}

func TestBridgeDistribute(t *testing.T) {
	b, rec := newTestBridge(t, &Song{
		ParallelMode: Distribute,
		Routes:       []Route{{Channel: 0, Drives: []uint8{3, 4}}},
	})

	b.Handle(LiveTrack, midi.NoteOn(0, 60, 90))
	b.Handle(LiveTrack, midi.NoteOn(0, 64, 90))
	b.Handle(LiveTrack, midi.NoteOn(0, 67, 90)) // no drive left
	b.Handle(LiveTrack, midi.NoteOff(0, 60))
	b.Handle(LiveTrack, midi.NoteOn(0, 72, 90)) // reuses drive 3

	want := []protocol.Command{
		protocol.NoteOn(protocol.Single(3), NoteFrequency(60)),
		protocol.NoteOn(protocol.Single(4), NoteFrequency(64)),
		protocol.NoteOff(protocol.Single(3)),
		protocol.NoteOn(protocol.Single(3), NoteFrequency(72)),
	}
	if len(rec.cmds) != len(want) {
		t.Fatalf("sent %v, want %v", rec.cmds, want)
	}
	for i := range want {
		if rec.cmds[i] != want[i] {
			t.Errorf("cmd %d = %+v, want %+v", i, rec.cmds[i], want[i])
		}
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", b.Dropped())
	}
}

func TestBridgeFoldsKeys(t *testing.T) {
	b, rec := newTestBridge(t, &Song{
		MinKey: 48,
		MaxKey: 72,
		Routes: []Route{{Channel: 0, Drives: []uint8{0}}},
	})

	b.Handle(LiveTrack, midi.NoteOn(0, 96, 90))
	b.Handle(LiveTrack, midi.NoteOff(0, 96))

	if len(rec.cmds) != 2 {
		t.Fatalf("sent %v", rec.cmds)
	}
	if rec.cmds[0].FrequencyMilliHz != NoteFrequency(72) {
		t.Errorf("frequency = %d, want %d", rec.cmds[0].FrequencyMilliHz, NoteFrequency(72))
	}
	if rec.cmds[1].Kind != protocol.KindNoteOff {
		t.Errorf("folded note was not released: %v", rec.cmds[1])
	}
}

func TestBridgeTrackRouting(t *testing.T) {
	b, rec := newTestBridge(t, &Song{
		Routes: []Route{
			{Tracks: []int{1}, Channel: 0, Drives: []uint8{0}},
			{Tracks: []int{2}, Channel: 0, Drives: []uint8{1}},
		},
	})

	b.Handle(2, midi.NoteOn(0, 60, 90))

	if len(rec.cmds) != 1 || rec.cmds[0].Address != protocol.Single(1) {
		t.Fatalf("sent %v, want one NoteOn to drive 1", rec.cmds)
	}
}

func TestBridgeRelease(t *testing.T) {
	b, rec := newTestBridge(t, DefaultSong(2))

	b.Handle(LiveTrack, midi.NoteOn(0, 60, 90))
	if err := b.Release(); err != nil {
		t.Fatal(err)
	}
	b.Handle(LiveTrack, midi.NoteOff(0, 60))

	if len(rec.cmds) != 2 || rec.cmds[1] != protocol.SilenceAll() {
		t.Fatalf("sent %v, want NoteOn then SilenceAll", rec.cmds)
	}
}

func TestBridgeSendError(t *testing.T) {
	b, rec := newTestBridge(t, DefaultSong(1))
	rec.fail = errLinkDown

	err := b.Handle(LiveTrack, midi.NoteOn(0, 60, 90))
	if !errors.Is(err, errLinkDown) {
		t.Errorf("err = %v, want errLinkDown", err)
	}
}

func TestNewRejectsInvalidSong(t *testing.T) {
	if _, err := New(&Song{ParallelMode: Collapse, MinKey: 12, MaxKey: 108}, &recordingSender{}, nil); !errors.Is(err, ErrInvalidSong) {
		t.Errorf("err = %v, want ErrInvalidSong", err)
	}
}
