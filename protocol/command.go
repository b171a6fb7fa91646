package protocol

import "encoding/binary"

// Kind distinguishes the two framing disciplines that share the same
// 12-byte command frame.
type Kind int

const (
	// KindImmediate commands are written as a single frame and
	// acknowledged with an 8-byte status reply.
	KindImmediate Kind = iota

	// KindListed commands are queued into a list packet and executed
	// sequentially by controller firmware, with no reply.
	KindListed
)

// Command is one 12-byte frame: an opcode and five 16-bit parameters.
// Construct commands with Immediate or Listed so the framing discipline
// is carried by the value rather than re-derived from the opcode.
type Command struct {
	Kind   Kind
	ID     uint16
	Params [5]uint16
}

// Immediate builds a synchronous request command.
func Immediate(id uint16, params ...uint16) Command {
	return build(KindImmediate, id, params)
}

// Listed builds a queued list command.
func Listed(id uint16, params ...uint16) Command {
	return build(KindListed, id, params)
}

// FromRaw classifies a raw opcode by the 0x8000 threshold. It exists for
// callers replaying legacy opcode values; new code should use the typed
// constructors.
func FromRaw(id uint16, params ...uint16) Command {
	if id >= ListThreshold {
		return Listed(id, params...)
	}
	return Immediate(id, params...)
}

func build(kind Kind, id uint16, params []uint16) Command {
	c := Command{Kind: kind, ID: id}
	copy(c.Params[:], params)
	return c
}

// Encode writes the frame into dst, which must hold FrameSize bytes.
func (c Command) Encode(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:2], c.ID)
	for i, p := range c.Params {
		binary.LittleEndian.PutUint16(dst[2+2*i:], p)
	}
}

// Frame returns the encoded 12-byte frame.
func (c Command) Frame() []byte {
	buf := make([]byte, FrameSize)
	c.Encode(buf)
	return buf
}

func (c Command) String() string {
	return Name(c.ID)
}
