// Package protocol implements the LMC galvo controller wire format
package protocol

// Protocol constants
const (
	// FrameSize is the size of a single command frame: a 16-bit command
	// id followed by five 16-bit little-endian parameters.
	FrameSize = 12

	// ListEntries is the fixed capacity of one list packet.
	ListEntries = 256

	// PacketSize is the size of a flushed list packet (0xC00 bytes).
	PacketSize = FrameSize * ListEntries

	// StatusSize is the size of the status reply that follows every
	// immediate command.
	StatusSize = 8

	// ListThreshold splits the opcode space: ids at or above it are
	// list commands, ids below it are immediate commands.
	ListThreshold = 0x8000
)

// Status flag bits, taken from the second word of the 8-byte reply.
const (
	StatusBusy  = 0x04
	StatusReady = 0x20
)
