// Package device is the host-side connection to a floppier controller.
package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"floppier/host/serial"
	"floppier/protocol"
)

// settleDelay gives a freshly opened USB CDC link time to come up
const settleDelay = 100 * time.Millisecond

// Device sends drive commands to a controller. The link is one-way.
type Device struct {
	transport *protocol.HostTransport
	log       *slog.Logger
	name      string
}

// Connect opens the serial port described by cfg
func Connect(cfg *serial.Config, logger *slog.Logger) (*Device, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", cfg.Device, err)
	}
	time.Sleep(settleDelay)

	d := New(port, logger)
	d.name = cfg.Device
	d.log.Info("device: connected", "device", cfg.Device, "baud", cfg.Baud)
	return d, nil
}

// New wraps an already open link
func New(w io.Writer, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		transport: protocol.NewHostTransport(w),
		log:       logger,
		name:      "link",
	}
}

// Send frames and writes one command
func (d *Device) Send(cmd protocol.Command) error {
	if err := d.transport.Send(cmd); err != nil {
		d.log.Error("device: send failed", "device", d.name, "kind", cmd.Kind, "err", err)
		return err
	}
	d.log.Debug("device: sent", "kind", cmd.Kind, "mode", cmd.Address.Mode, "id", cmd.Address.ID, "mhz", cmd.FrequencyMilliHz)
	return nil
}

// NoteOn starts addr sounding at milliHz
func (d *Device) NoteOn(addr protocol.Address, milliHz uint32) error {
	return d.Send(protocol.NoteOn(addr, milliHz))
}

// NoteOff silences addr
func (d *Device) NoteOff(addr protocol.Address) error {
	return d.Send(protocol.NoteOff(addr))
}

// Reset returns addr to its home position
func (d *Device) Reset(addr protocol.Address) error {
	return d.Send(protocol.Reset(addr))
}

// SilenceAll stops every drive
func (d *Device) SilenceAll() error {
	return d.Send(protocol.SilenceAll())
}

// Hold plays milliHz on addr for duration, or until ctx ends, then
// silences every drive
func (d *Device) Hold(ctx context.Context, addr protocol.Address, milliHz uint32, duration time.Duration) error {
	if err := d.NoteOn(addr, milliHz); err != nil {
		return err
	}
	d.log.Info("device: holding", "mode", addr.Mode, "id", addr.ID, "mhz", milliHz, "for", duration)

	t := time.NewTimer(duration)
	defer t.Stop()
	var waitErr error
	select {
	case <-t.C:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	if err := d.SilenceAll(); err != nil {
		return err
	}
	return waitErr
}

// Sent returns the number of commands written
func (d *Device) Sent() uint64 {
	return d.transport.Sent()
}

// Close closes the link
func (d *Device) Close() error {
	d.log.Debug("device: closing", "device", d.name, "sent", d.Sent())
	return d.transport.Close()
}
