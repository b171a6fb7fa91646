// Package usbconn provides the transport connection to an LMC galvo
// controller, addressed by device index.
package usbconn

import (
	"errors"
	"fmt"

	"galvo/protocol"
)

// Connection is the capability set the controller depends on.
// Implementations:
//   - USBConnection: bulk transfers over a claimed libusb interface
//   - MockConnection: in-memory, for tests, never touches hardware
type Connection interface {
	// Open discovers and claims the device at the given index and
	// returns the index actually opened.
	Open(index int) (int, error)

	// Close releases the device. Best-effort: every cleanup step is
	// attempted even if an earlier one fails.
	Close(index int) error

	// Write sends one frame. The frame must be exactly 12 bytes
	// (immediate command) or 3072 bytes (list packet); any other
	// length is a contract violation and is never retried.
	Write(index int, frame []byte) error

	// Read returns the 8-byte status reply.
	Read(index int) ([]byte, error)

	// IsOpen reports whether the index is currently claimed.
	IsOpen(index int) bool
}

// Error taxonomy. Callers match with errors.Is; every failure path
// wraps exactly one of these.
var (
	// ErrDeviceUnavailable: device absent, rejected by selection
	// criteria, or the reconnection budget is exhausted.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrPermissionDenied: the OS refused access to the device node.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransportFailure: an I/O error survived all transfer retries.
	ErrTransportFailure = errors.New("transport failure")

	// ErrProtocolViolation: a frame of illegal length reached the
	// transport. Programmer error, never retried.
	ErrProtocolViolation = errors.New("protocol violation")
)

// ErrNotConnected is the transport-failure variant raised by operations
// on an index that was never opened.
var ErrNotConnected = fmt.Errorf("%w: not connected", ErrTransportFailure)

// checkFrame enforces the frame-length contract before any transport
// call is made.
func checkFrame(frame []byte) error {
	if len(frame) != protocol.FrameSize && len(frame) != protocol.PacketSize {
		return fmt.Errorf("%w: frame length %d, want %d or %d",
			ErrProtocolViolation, len(frame), protocol.FrameSize, protocol.PacketSize)
	}
	return nil
}
