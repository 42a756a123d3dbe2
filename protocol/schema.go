package protocol

import "errors"

// Kind identifies a command on the wire
type Kind uint32

const (
	KindNoteOn     Kind = 1
	KindNoteOff    Kind = 2
	KindReset      Kind = 3
	KindSilenceAll Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note_on"
	case KindNoteOff:
		return "note_off"
	case KindReset:
		return "reset"
	case KindSilenceAll:
		return "silence_all"
	}
	return "unsupported"
}

// AddressMode selects how an address fans out over drives
type AddressMode uint8

const (
	AddressSingle    AddressMode = 0
	AddressGroup     AddressMode = 1
	AddressBroadcast AddressMode = 2
)

// Address targets one drive, a configured group of drives, or every drive
type Address struct {
	Mode AddressMode
	ID   uint8
}

// Single addresses one drive
func Single(id uint8) Address { return Address{Mode: AddressSingle, ID: id} }

// Group addresses every drive configured with the group id
func Group(id uint8) Address { return Address{Mode: AddressGroup, ID: id} }

// Broadcast addresses every drive
func Broadcast() Address { return Address{Mode: AddressBroadcast} }

var (
	ErrInvalidAddress = errors.New("invalid address mode")
	ErrShortPayload   = errors.New("payload shorter than command layout")
	ErrTrailingBytes  = errors.New("payload has trailing bytes")
)

// Command is one decoded wire command.
// Only the fields belonging to Kind are meaningful.
type Command struct {
	Kind             Kind
	Address          Address
	FrequencyMilliHz uint32
}

// Supported reports whether the kind is one this schema version defines
func (c Command) Supported() bool {
	switch c.Kind {
	case KindNoteOn, KindNoteOff, KindReset, KindSilenceAll:
		return true
	}
	return false
}

// NoteOn starts or retunes the addressed drives
func NoteOn(addr Address, milliHz uint32) Command {
	return Command{Kind: KindNoteOn, Address: addr, FrequencyMilliHz: milliHz}
}

// NoteOff silences the addressed drives
func NoteOff(addr Address) Command {
	return Command{Kind: KindNoteOff, Address: addr}
}

// Reset re-homes and silences the addressed drives
func Reset(addr Address) Command {
	return Command{Kind: KindReset, Address: addr}
}

// SilenceAll silences every drive
func SilenceAll() Command {
	return Command{Kind: KindSilenceAll}
}

// EncodeCommand writes the command payload (kind and fields)
func EncodeCommand(output OutputBuffer, cmd Command) {
	EncodeVLQUint(output, uint32(cmd.Kind))
	switch cmd.Kind {
	case KindNoteOn:
		encodeAddress(output, cmd.Address)
		f := cmd.FrequencyMilliHz
		output.OutputByte(byte(f >> 24))
		output.OutputByte(byte(f >> 16))
		output.OutputByte(byte(f >> 8))
		output.OutputByte(byte(f))
	case KindNoteOff, KindReset:
		encodeAddress(output, cmd.Address)
	}
}

// DecodeCommand parses one command payload. Kinds this version does not
// know are returned with only Kind set; their fields are skipped.
func DecodeCommand(payload []byte) (Command, error) {
	kind, err := DecodeVLQUint(&payload)
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Kind: Kind(kind)}

	switch cmd.Kind {
	case KindNoteOn:
		if len(payload) < 6 {
			return Command{}, ErrShortPayload
		}
		if cmd.Address, err = decodeAddress(payload); err != nil {
			return Command{}, err
		}
		cmd.FrequencyMilliHz = uint32(payload[2])<<24 | uint32(payload[3])<<16 |
			uint32(payload[4])<<8 | uint32(payload[5])
		payload = payload[6:]
	case KindNoteOff, KindReset:
		if len(payload) < 2 {
			return Command{}, ErrShortPayload
		}
		if cmd.Address, err = decodeAddress(payload); err != nil {
			return Command{}, err
		}
		payload = payload[2:]
	case KindSilenceAll:
	default:
		return cmd, nil
	}

	if len(payload) != 0 {
		return Command{}, ErrTrailingBytes
	}
	return cmd, nil
}

func encodeAddress(output OutputBuffer, addr Address) {
	output.OutputByte(byte(addr.Mode))
	output.OutputByte(addr.ID)
}

func decodeAddress(b []byte) (Address, error) {
	mode := AddressMode(b[0])
	if mode > AddressBroadcast {
		return Address{}, ErrInvalidAddress
	}
	return Address{Mode: mode, ID: b[1]}, nil
}
