//go:build js && wasm

// Command wasm exposes the floppier frame codec to a browser page that
// drives the controller over WebSerial.
package main

import (
	"encoding/hex"
	"errors"
	"syscall/js"

	"floppier/host/bridge"
	"floppier/protocol"
)

func main() {
	js.Global().Set("floppierWasm", js.ValueOf(map[string]interface{}{
		"encodeFrame":   js.FuncOf(encodeFrameWrapper),
		"decodeFrames":  js.FuncOf(decodeFramesWrapper),
		"crc16":         js.FuncOf(crc16Wrapper),
		"noteFrequency": js.FuncOf(noteFrequencyWrapper),
		"schemaVersion": int(protocol.SchemaVersion),
	}))

	// Keep the program running
	select {}
}

// encodeFrameWrapper builds one wire frame
// Args: kind (number), mode (number), id (number), milliHz (number)
// Returns: hex string, or "error: ..." on failure
func encodeFrameWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: missing kind argument")
	}
	cmd := protocol.Command{Kind: protocol.Kind(args[0].Int())}
	if len(args) > 2 {
		cmd.Address = protocol.Address{
			Mode: protocol.AddressMode(args[1].Int()),
			ID:   uint8(args[2].Int()),
		}
	}
	if len(args) > 3 {
		cmd.FrequencyMilliHz = uint32(args[3].Int())
	}

	frame, err := protocol.AppendFrame(nil, cmd)
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}
	return js.ValueOf(hex.EncodeToString(frame))
}

// decodeFramesWrapper runs bytes through the controller's decoder
// Args: hexString (string)
// Returns: {commands: [{kind, name, mode, id, milliHz, supported}], malformed, versionMismatch, error}
func decodeFramesWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeDecodeResult(nil, 0, 0, "missing hex string argument")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return makeDecodeResult(nil, 0, 0, "invalid hex string: "+err.Error())
	}

	dec := protocol.NewDecoder(2 * len(data))
	dec.Write(data)

	var cmds []interface{}
	malformed, mismatch := 0, 0
	for {
		cmd, err := dec.Next()
		switch {
		case err == nil:
			cmds = append(cmds, map[string]interface{}{
				"kind":      int(cmd.Kind),
				"name":      cmd.Kind.String(),
				"mode":      int(cmd.Address.Mode),
				"id":        int(cmd.Address.ID),
				"milliHz":   int(cmd.FrequencyMilliHz),
				"supported": cmd.Supported(),
			})
			continue
		case errors.Is(err, protocol.ErrMalformed):
			malformed++
			continue
		case errors.Is(err, protocol.ErrVersionMismatch):
			mismatch++
			continue
		}
		break
	}
	return makeDecodeResult(cmds, malformed, mismatch, "")
}

// crc16Wrapper calculates the frame checksum
// Args: hexString (string)
// Returns: number (uint16)
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// noteFrequencyWrapper converts a MIDI key to milli-hertz
// Args: key (number)
// Returns: number
func noteFrequencyWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(bridge.NoteFrequency(uint8(args[0].Int()))))
}

func makeDecodeResult(cmds []interface{}, malformed, mismatch int, errMsg string) js.Value {
	if cmds == nil {
		cmds = []interface{}{}
	}
	result := make(map[string]interface{})
	result["commands"] = cmds
	result["malformed"] = malformed
	result["versionMismatch"] = mismatch
	if errMsg != "" {
		result["error"] = errMsg
	}
	return js.ValueOf(result)
}
