package device

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"floppier/protocol"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodeAll runs everything written to the link back through the
// controller's decoder
func decodeAll(t *testing.T, data []byte) []protocol.Command {
	t.Helper()
	dec := protocol.NewDecoder(protocol.DefaultDecoderBuffer)
	if n := dec.Write(data); n != len(data) {
		t.Fatalf("decoder took %d of %d bytes", n, len(data))
	}
	var cmds []protocol.Command
	for {
		cmd, err := dec.Next()
		if errors.Is(err, protocol.ErrTruncated) {
			return cmds
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		cmds = append(cmds, cmd)
	}
}

func TestDeviceCommands(t *testing.T) {
	var link bytes.Buffer
	d := New(&link, quietLogger())

	d.NoteOn(protocol.Single(3), 440000)
	d.NoteOff(protocol.Group(1))
	d.Reset(protocol.Broadcast())
	d.SilenceAll()

	want := []protocol.Command{
		protocol.NoteOn(protocol.Single(3), 440000),
		protocol.NoteOff(protocol.Group(1)),
		protocol.Reset(protocol.Broadcast()),
		protocol.SilenceAll(),
	}
	got := decodeAll(t, link.Bytes())
	if len(got) != len(want) {
		t.Fatalf("decoded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cmd %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if d.Sent() != 4 {
		t.Errorf("Sent = %d, want 4", d.Sent())
	}
}

type brokenLink struct{}

func (brokenLink) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestDeviceSendError(t *testing.T) {
	d := New(brokenLink{}, quietLogger())
	if err := d.SilenceAll(); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v, want io.ErrClosedPipe", err)
	}
	if d.Sent() != 0 {
		t.Errorf("Sent = %d after a failed write", d.Sent())
	}
}

func TestDeviceHold(t *testing.T) {
	var link bytes.Buffer
	d := New(&link, quietLogger())

	if err := d.Hold(context.Background(), protocol.Single(0), 261626, time.Millisecond); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	got := decodeAll(t, link.Bytes())
	if len(got) != 2 || got[0].Kind != protocol.KindNoteOn || got[1] != protocol.SilenceAll() {
		t.Errorf("decoded %v, want NoteOn then SilenceAll", got)
	}
}

func TestDeviceHoldCancelled(t *testing.T) {
	var link bytes.Buffer
	d := New(&link, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Hold(ctx, protocol.Single(0), 261626, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got := decodeAll(t, link.Bytes()); len(got) != 2 {
		t.Errorf("decoded %v, want the drive silenced after cancel", got)
	}
}

func TestDeviceClose(t *testing.T) {
	var link bytes.Buffer
	d := New(&link, quietLogger())
	if err := d.Close(); err != nil {
		t.Errorf("Close on a non-closer: %v", err)
	}
}
