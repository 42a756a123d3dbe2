package protocol

import (
	"fmt"
	"io"
	"sync"
)

// HostTransport frames commands and writes them to a device link.
// The device never answers, so there is no acknowledgement path.
type HostTransport struct {
	port io.Writer

	writeMutex sync.Mutex
	scratch    ScratchOutput

	sent uint64
}

// NewHostTransport creates a new host-side transport
func NewHostTransport(port io.Writer) *HostTransport {
	return &HostTransport{port: port}
}

// Send frames and writes a single command
func (t *HostTransport) Send(cmd Command) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	t.scratch.Reset()
	if err := EncodeFrame(&t.scratch, cmd); err != nil {
		return fmt.Errorf("failed to build %s frame: %w", cmd.Kind, err)
	}
	if err := t.writeMessage(t.scratch.Result()); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", cmd.Kind, err)
	}
	t.sent++
	return nil
}

// SendBatch frames several commands into one write so they arrive together
func (t *HostTransport) SendBatch(cmds []Command) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	var msg []byte
	for _, cmd := range cmds {
		var err error
		if msg, err = AppendFrame(msg, cmd); err != nil {
			return fmt.Errorf("failed to build %s frame: %w", cmd.Kind, err)
		}
	}
	if err := t.writeMessage(msg); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	t.sent += uint64(len(cmds))
	return nil
}

// Sent returns the number of commands written so far
func (t *HostTransport) Sent() uint64 {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	return t.sent
}

// writeMessage sends one buffer to the port. Caller holds writeMutex.
func (t *HostTransport) writeMessage(msg []byte) error {
	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// Close closes the underlying port when it is closable
func (t *HostTransport) Close() error {
	if c, ok := t.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
