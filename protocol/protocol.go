// Package protocol implements the floppier wire schema and frame codec
package protocol

// SchemaVersion is carried in every frame so host and device can detect a mismatch
const SchemaVersion uint8 = 1

// Frame layout:
//
//	SYNC LEN VER PAYLOAD... CRC_HI CRC_LO SYNC
//
// LEN counts from itself through the trailing SYNC. The CRC covers LEN, VER
// and PAYLOAD. The leading SYNC is emitted by encoders and skipped by the
// decoder while it is synchronized.
const (
	FrameSync      = 0x7E
	FrameHeader    = 2 // LEN + VER
	FrameTrailer   = 3 // CRC16 + SYNC
	FrameLengthMin = FrameHeader + 1 + FrameTrailer
	FrameLengthMax = 64

	// FrameOverheadMax is the encoded size beyond the payload, leading SYNC included
	FrameOverheadMax = 1 + FrameHeader + FrameTrailer
)
