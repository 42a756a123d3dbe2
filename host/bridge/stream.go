package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
)

// Parser splits a raw MIDI byte stream into channel messages.
// Running status is honoured; system exclusive, system common and
// realtime bytes are skipped.
type Parser struct {
	running byte
	buf     [3]byte
	n       int
	want    int
	sysex   bool
}

// Feed consumes one byte and returns a complete channel message when
// this byte finishes one. The returned message is only valid until the
// next call.
func (p *Parser) Feed(c byte) (midi.Message, bool) {
	switch {
	case c >= 0xF8:
		// realtime bytes may appear anywhere, even inside other messages
		return nil, false
	case c == 0xF0:
		p.sysex = true
		p.running = 0
		return nil, false
	case c == 0xF7:
		p.sysex = false
		return nil, false
	case c >= 0xF0:
		// system common cancels running status
		p.sysex = false
		p.running = 0
		p.n = 0
		return nil, false
	case c >= 0x80:
		p.sysex = false
		p.running = c
		p.buf[0] = c
		p.n = 1
		p.want = dataLength(c) + 1
		return nil, false
	}

	if p.sysex || p.running == 0 {
		return nil, false
	}
	if p.n == 0 {
		p.buf[0] = p.running
		p.n = 1
		p.want = dataLength(p.running) + 1
	}
	p.buf[p.n] = c
	p.n++
	if p.n < p.want {
		return nil, false
	}
	p.n = 0
	return midi.Message(p.buf[:p.want]), true
}

// Reset drops any partial message and running status
func (p *Parser) Reset() {
	*p = Parser{}
}

func dataLength(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

// ReadStream reads raw MIDI from r and hands each message to the bridge
// as live input until r is exhausted or ctx is cancelled. If r is an
// io.Closer it is closed on cancellation to unblock a pending Read.
func ReadStream(ctx context.Context, r io.Reader, b *Bridge) error {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	var p Parser
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			msg, ok := p.Feed(c)
			if !ok {
				continue
			}
			if herr := b.Handle(LiveTrack, msg); herr != nil {
				return herr
			}
		}
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read midi stream: %w", err)
		}
	}
}
