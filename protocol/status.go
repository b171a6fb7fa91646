package protocol

import "encoding/binary"

// Status is the decoded 8-byte reply to an immediate command: four
// little-endian 16-bit words. Word 1 carries the controller flag bits;
// GetPositionXY replies carry the galvo position in words 1 and 2.
type Status [4]uint16

// DecodeStatus parses an 8-byte reply. Short replies decode as far as
// the data allows, leaving the remaining words zero.
func DecodeStatus(raw []byte) Status {
	var s Status
	for i := 0; i < len(s) && 2*i+1 < len(raw); i++ {
		s[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return s
}

// Ready reports whether the controller accepts new list packets.
func (s Status) Ready() bool {
	return s[1]&StatusReady != 0
}

// Busy reports whether the controller is still executing a list.
func (s Status) Busy() bool {
	return s[1]&StatusBusy != 0
}

// Position interprets the reply to GetPositionXY.
func (s Status) Position() (x, y uint16) {
	return s[1], s[2]
}
