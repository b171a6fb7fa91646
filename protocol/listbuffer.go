package protocol

// ListBuffer accumulates list commands into a fixed 3072-byte packet.
// The backing array is pre-filled with ListEndOfList entries, so a
// packet flushed before all 256 slots are used is already padded with
// the no-op terminator the firmware expects.
type ListBuffer struct {
	buf [PacketSize]byte
	n   int
}

// NewListBuffer returns an empty, padded list buffer.
func NewListBuffer() *ListBuffer {
	b := &ListBuffer{}
	b.Clear()
	return b
}

// Append queues one list command. Appending to a full buffer panics:
// the caller must flush at capacity, and failing to do so is a
// programming error, not a runtime condition.
func (b *ListBuffer) Append(c Command) {
	if b.n >= ListEntries {
		panic("protocol: list buffer overflow")
	}
	c.Encode(b.buf[b.n*FrameSize:])
	b.n++
}

// Len returns the number of queued entries.
func (b *ListBuffer) Len() int {
	return b.n
}

// Full reports whether all 256 slots are used.
func (b *ListBuffer) Full() bool {
	return b.n >= ListEntries
}

// Empty reports whether no entries are queued.
func (b *ListBuffer) Empty() bool {
	return b.n == 0
}

// Packet returns the full 3072-byte padded packet and resets the buffer.
func (b *ListBuffer) Packet() []byte {
	pkt := make([]byte, PacketSize)
	copy(pkt, b.buf[:])
	b.Clear()
	return pkt
}

// Clear discards queued entries and restores the terminator padding.
func (b *ListBuffer) Clear() {
	pad := Listed(OpListEndOfList)
	for i := 0; i < ListEntries; i++ {
		pad.Encode(b.buf[i*FrameSize:])
	}
	b.n = 0
}
