package protocol

import "errors"

var (
	// ErrTruncated means the buffered bytes do not yet hold a whole frame
	ErrTruncated = errors.New("frame truncated")
	// ErrMalformed means bytes were discarded; the decoder resynchronizes on the next sync byte
	ErrMalformed = errors.New("malformed frame")
	// ErrVersionMismatch means a well-formed frame carried another schema version
	ErrVersionMismatch = errors.New("schema version mismatch")
)

// DefaultDecoderBuffer holds a few frames of USB burst
const DefaultDecoderBuffer = 256

// Decoder turns a byte stream into commands. It never blocks: Next returns
// ErrTruncated until Write has supplied a complete frame. Decoding does not
// allocate.
type Decoder struct {
	input   *FifoBuffer
	scratch [FrameLengthMax]byte
	synced  bool

	// Version of the last frame rejected with ErrVersionMismatch
	LastVersion uint8
}

// NewDecoder creates a decoder with room for capacity buffered bytes.
// Capacities below two maximum frames are raised.
func NewDecoder(capacity int) *Decoder {
	if capacity < 2*FrameLengthMax {
		capacity = 2 * FrameLengthMax
	}
	return &Decoder{input: NewFifoBuffer(capacity), synced: true}
}

// Write buffers incoming bytes and returns how many fit
func (d *Decoder) Write(p []byte) int {
	return d.input.Write(p)
}

// Buffered returns the number of bytes waiting to be decoded
func (d *Decoder) Buffered() int {
	return d.input.Available()
}

// Synchronized reports whether the decoder is aligned on a frame boundary
func (d *Decoder) Synchronized() bool {
	return d.synced
}

// Next decodes the next command. Frame-level errors consume the offending
// bytes, so calling Next again continues with the following frame.
func (d *Decoder) Next() (Command, error) {
	for {
		n := d.input.Peek(d.scratch[:])
		if n == 0 {
			return Command{}, ErrTruncated
		}
		data := d.scratch[:n]

		if !d.synced {
			idx := -1
			for i, b := range data {
				if b == FrameSync {
					idx = i
					break
				}
			}
			if idx < 0 {
				d.input.Pop(n)
				if n < len(d.scratch) {
					return Command{}, ErrTruncated
				}
				continue
			}
			d.input.Pop(idx + 1)
			d.synced = true
			continue
		}

		if data[0] == FrameSync {
			d.input.Pop(1)
			continue
		}

		frameLen := int(data[0])
		if frameLen < FrameLengthMin || frameLen > FrameLengthMax {
			d.synced = false
			return Command{}, ErrMalformed
		}
		if n < frameLen {
			// A corrupted LEN can claim more bytes than will ever arrive.
			// Give it up when a complete frame is already waiting behind it.
			if i := nextFrame(data); i > 0 {
				d.input.Pop(i)
				return Command{}, ErrMalformed
			}
			return Command{}, ErrTruncated
		}
		if !frameValid(data[:frameLen]) {
			d.synced = false
			return Command{}, ErrMalformed
		}
		crcPos := frameLen - FrameTrailer

		frame := data[:frameLen]
		d.input.Pop(frameLen)

		if frame[1] != SchemaVersion {
			d.LastVersion = frame[1]
			return Command{}, ErrVersionMismatch
		}

		cmd, err := DecodeCommand(frame[FrameHeader:crcPos])
		if err != nil {
			return Command{}, ErrMalformed
		}
		return cmd, nil
	}
}

// frameValid reports whether frame, starting at LEN, has a closing sync and a good CRC
func frameValid(frame []byte) bool {
	n := len(frame)
	if n < FrameLengthMin || frame[n-1] != FrameSync {
		return false
	}
	crcPos := n - FrameTrailer
	return uint16(frame[crcPos])<<8|uint16(frame[crcPos+1]) == CRC16(frame[:crcPos])
}

// nextFrame returns the index of the first sync in data[1:] that is followed
// by a complete valid frame, or 0 if there is none.
func nextFrame(data []byte) int {
	for i := 1; i < len(data)-1; i++ {
		if data[i] != FrameSync {
			continue
		}
		frameLen := int(data[i+1])
		if frameLen < FrameLengthMin || frameLen > FrameLengthMax || i+1+frameLen > len(data) {
			continue
		}
		if frameValid(data[i+1 : i+1+frameLen]) {
			return i
		}
	}
	return 0
}

// Reset drops all buffered bytes and assumes the next byte starts a frame
func (d *Decoder) Reset() {
	d.input.Reset()
	d.synced = true
}
