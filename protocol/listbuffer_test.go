package protocol

import (
	"encoding/binary"
	"testing"
)

func TestListBufferEmpty(t *testing.T) {
	buf := NewListBuffer()

	if !buf.Empty() {
		t.Error("New buffer should be empty")
	}
	if buf.Full() {
		t.Error("New buffer should not be full")
	}
	if buf.Len() != 0 {
		t.Errorf("Expected 0 entries, got %d", buf.Len())
	}
}

func TestListBufferAppend(t *testing.T) {
	buf := NewListBuffer()

	buf.Append(Listed(OpListJumpTo, 100, 200))
	buf.Append(Listed(OpListMarkTo, 300, 400))

	if buf.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", buf.Len())
	}

	pkt := buf.Packet()
	if len(pkt) != PacketSize {
		t.Fatalf("Expected %d byte packet, got %d", PacketSize, len(pkt))
	}

	if id := binary.LittleEndian.Uint16(pkt[0:2]); id != OpListJumpTo {
		t.Errorf("Entry 0: expected opcode 0x%04X, got 0x%04X", OpListJumpTo, id)
	}
	if x := binary.LittleEndian.Uint16(pkt[2:4]); x != 100 {
		t.Errorf("Entry 0: expected x=100, got %d", x)
	}
	if id := binary.LittleEndian.Uint16(pkt[12:14]); id != OpListMarkTo {
		t.Errorf("Entry 1: expected opcode 0x%04X, got 0x%04X", OpListMarkTo, id)
	}

	// Everything after the queued entries must be terminator padding.
	for i := 2; i < ListEntries; i++ {
		id := binary.LittleEndian.Uint16(pkt[i*FrameSize:])
		if id != OpListEndOfList {
			t.Fatalf("Entry %d: expected terminator padding, got 0x%04X", i, id)
		}
	}

	if !buf.Empty() {
		t.Error("Buffer should be empty after Packet()")
	}
}

func TestListBufferFull(t *testing.T) {
	buf := NewListBuffer()

	for i := 0; i < ListEntries; i++ {
		buf.Append(Listed(OpListMarkTo, uint16(i)))
	}
	if !buf.Full() {
		t.Error("Buffer with 256 entries should be full")
	}

	defer func() {
		if recover() == nil {
			t.Error("Appending past capacity should panic")
		}
	}()
	buf.Append(Listed(OpListMarkTo))
}

func TestListBufferClearRestoresPadding(t *testing.T) {
	buf := NewListBuffer()
	buf.Append(Listed(OpListMarkTo, 1, 2, 3, 4, 5))
	buf.Clear()

	pkt := buf.Packet()
	if id := binary.LittleEndian.Uint16(pkt[0:2]); id != OpListEndOfList {
		t.Errorf("Cleared buffer should hold terminators, got opcode 0x%04X", id)
	}
	if p := binary.LittleEndian.Uint16(pkt[2:4]); p != 0 {
		t.Errorf("Terminator params should be zero, got %d", p)
	}
}
