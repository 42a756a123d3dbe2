package protocol

import "errors"

var ErrFrameTooLong = errors.New("frame exceeds maximum length")

// AppendFrame encodes cmd as a complete frame, leading sync included,
// and appends it to dst.
func AppendFrame(dst []byte, cmd Command) ([]byte, error) {
	scratch := NewScratchOutput()
	if err := EncodeFrame(scratch, cmd); err != nil {
		return dst, err
	}
	return append(dst, scratch.Result()...), nil
}

// EncodeFrame writes one framed command to output
func EncodeFrame(output OutputBuffer, cmd Command) error {
	return encodeFrame(output, cmd, SchemaVersion)
}

func encodeFrame(output OutputBuffer, cmd Command, version uint8) error {
	output.OutputByte(FrameSync)
	start := output.CurPosition()

	output.OutputByte(0) // length placeholder
	output.OutputByte(version)
	EncodeCommand(output, cmd)

	body := output.CurPosition() - start
	frameLen := body + FrameTrailer
	if frameLen > FrameLengthMax {
		return ErrFrameTooLong
	}
	output.Update(start, uint8(frameLen))

	crc := CRC16(output.DataSince(start))
	output.OutputByte(uint8(crc >> 8))
	output.OutputByte(uint8(crc))
	output.OutputByte(FrameSync)
	return nil
}
