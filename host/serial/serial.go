package serial

import (
	"io"
)

// Port is a byte link to the drive controller.
// Native builds use github.com/tarm/serial; tests substitute a buffer.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultBaud matches the controller's debug-free USB CDC link
const DefaultBaud = 115200

// DefaultConfig returns a configuration for the given device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
