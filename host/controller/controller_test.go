package controller

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"galvo/host/usbconn"
	"galvo/protocol"
)

func newTestController() (*Controller, *usbconn.MockConnection) {
	s := DefaultSettings()
	s.Mock = true
	c := New(s, zerolog.Nop())
	m := usbconn.NewMockConnection(zerolog.Nop())
	m.SetRetryPolicy(usbconn.RetryPolicy{Attempts: 3, Delay: 0})
	c.SetConnection(m)
	c.SetConnectPolicy(usbconn.RetryPolicy{Attempts: 10, Delay: 0})
	return c, m
}

// packets returns the list packets (3072-byte frames) the mock saw.
func packets(m *usbconn.MockConnection) [][]byte {
	var out [][]byte
	for _, f := range m.Frames() {
		if len(f) == protocol.PacketSize {
			out = append(out, f)
		}
	}
	return out
}

// entries decodes the non-terminator entries of a list packet.
func entries(pkt []byte) []protocol.Command {
	var out []protocol.Command
	for i := 0; i < protocol.ListEntries; i++ {
		off := i * protocol.FrameSize
		id := binary.LittleEndian.Uint16(pkt[off:])
		if id == protocol.OpListEndOfList {
			continue
		}
		cmd := protocol.Command{Kind: protocol.KindListed, ID: id}
		for p := 0; p < 5; p++ {
			cmd.Params[p] = binary.LittleEndian.Uint16(pkt[off+2+2*p:])
		}
		out = append(out, cmd)
	}
	return out
}

func TestMarkDeduplicatesPosition(t *testing.T) {
	c, _ := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	base := c.list.Len()

	if err := c.Mark(100, 100); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if c.list.Len() != base+1 {
		t.Errorf("First mark should emit 1 entry, list grew by %d", c.list.Len()-base)
	}

	if err := c.Mark(100, 100); err != nil {
		t.Fatalf("Repeated mark failed: %v", err)
	}
	if c.list.Len() != base+1 {
		t.Errorf("Mark to current position should emit nothing, list grew by %d", c.list.Len()-base-1)
	}

	x, y := c.Position()
	if x != 100 || y != 100 {
		t.Errorf("Expected position (100, 100), got (%d, %d)", x, y)
	}
}

func TestOutOfRangeDropped(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	base := c.list.Len()
	before := len(m.Frames())

	coords := [][2]int{
		{-1, 100},
		{100, -1},
		{0x10000, 100},
		{100, 0x10000},
		{-5, 0x20000},
	}
	for _, xy := range coords {
		if err := c.Mark(xy[0], xy[1]); err != nil {
			t.Errorf("Mark(%d, %d) should silently drop, got %v", xy[0], xy[1], err)
		}
		if err := c.Goto(xy[0], xy[1]); err != nil {
			t.Errorf("Goto(%d, %d) should silently drop, got %v", xy[0], xy[1], err)
		}
	}

	if c.list.Len() != base {
		t.Errorf("Out-of-range moves queued %d entries", c.list.Len()-base)
	}
	if len(m.Frames()) != before {
		t.Error("Out-of-range moves must never reach the transport")
	}
	if x, y := c.Position(); x != 0 || y != 0 {
		t.Errorf("Position should be unchanged, got (%d, %d)", x, y)
	}
}

func TestListPacketCount(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	// ProgramMode queued the jump speed entry; fill up to 300 raw list
	// writes total.
	queued := c.list.Len()
	n := 300 - queued
	for i := 0; i < n; i++ {
		if err := c.RawWrite(protocol.OpListMarkTo, uint16(i), uint16(i)); err != nil {
			t.Fatalf("RawWrite %d failed: %v", i, err)
		}
	}

	if got := len(packets(m)); got != 1 {
		t.Errorf("300 queued entries should have flushed exactly 1 full packet, got %d", got)
	}

	if err := c.RapidMode(); err != nil {
		t.Fatalf("RapidMode failed: %v", err)
	}
	// ceil(300*12/3072) == 2: the partial remainder flushes, padded,
	// on mode exit.
	if got := len(packets(m)); got != 2 {
		t.Errorf("Expected 2 packets after rapid mode, got %d", got)
	}
	if !c.list.Empty() {
		t.Error("List buffer should be empty after rapid mode")
	}
}

func TestPowerDedup(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	base := c.list.Len()

	if err := c.SetPower(75); err != nil {
		t.Fatalf("SetPower failed: %v", err)
	}
	if err := c.SetPower(75); err != nil {
		t.Fatalf("Repeated SetPower failed: %v", err)
	}
	if c.list.Len() != base+1 {
		t.Errorf("Equal power written twice should emit once, got %d entries", c.list.Len()-base)
	}

	if err := c.RapidMode(); err != nil {
		t.Fatalf("RapidMode failed: %v", err)
	}
	pkts := packets(m)
	if len(pkts) != 1 {
		t.Fatalf("Expected 1 packet, got %d", len(pkts))
	}
	var dac []uint16
	for _, e := range entries(pkts[0]) {
		if e.ID == protocol.OpListMarkPowerRatio {
			dac = append(dac, e.Params[0])
		}
	}
	if len(dac) != 1 {
		t.Fatalf("Expected exactly 1 power entry, got %d", len(dac))
	}
	if dac[0] != 3071 {
		t.Errorf("Power 75%% should encode DAC value 3071, got %d", dac[0])
	}
}

func TestCacheInvalidatedByModeTransition(t *testing.T) {
	c, _ := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	if err := c.SetPower(50); err != nil {
		t.Fatalf("SetPower failed: %v", err)
	}
	if err := c.RapidMode(); err != nil {
		t.Fatalf("RapidMode failed: %v", err)
	}

	// The device list was reset on re-entry, so the same value must
	// re-emit even though it matches the previously written one.
	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	base := c.list.Len()
	if err := c.SetPower(50); err != nil {
		t.Fatalf("SetPower failed: %v", err)
	}
	if c.list.Len() != base+1 {
		t.Error("Setter must re-emit after mode transition cleared the cache")
	}
}

func TestLightProgramCheapTransition(t *testing.T) {
	c, m := newTestController()

	if err := c.LightMode(); err != nil {
		t.Fatalf("LightMode failed: %v", err)
	}
	if c.Mode() != ModeLight {
		t.Errorf("Expected light mode, got %v", c.Mode())
	}
	if c.PortBits()&PortPointer == 0 {
		t.Error("Pointer bit should be set in light mode")
	}

	before := len(packets(m))
	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	// Light -> program is the cheap path: port swap only, no list
	// reset, no packet traffic.
	if got := len(packets(m)); got != before {
		t.Errorf("Cheap transition sent %d packets", got-before)
	}
	if c.PortBits()&PortPointer != 0 {
		t.Error("Pointer bit should be cleared in program mode")
	}
	if c.PortBits()&PortLaser == 0 {
		t.Error("Laser bit should be set in program mode")
	}
}

func TestAbortSendsTerminatorPacket(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	if err := c.Mark(500, 500); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	if err := c.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if c.Mode() != ModeRapid {
		t.Errorf("Abort should return to rapid mode, got %v", c.Mode())
	}

	pkts := packets(m)
	if len(pkts) == 0 {
		t.Fatal("Abort must transmit a terminating packet")
	}
	last := pkts[len(pkts)-1]
	if got := len(entries(last)); got != 0 {
		t.Errorf("Terminating packet should hold only terminator entries, found %d others", got)
	}
	if c.PortBits()&(PortPointer|PortLaser) != 0 {
		t.Error("Abort should clear the port beam bits")
	}
}

func TestPauseResume(t *testing.T) {
	c, _ := newTestController()

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if !c.paused {
		t.Error("Controller should report paused")
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if c.paused {
		t.Error("Controller should report resumed")
	}
}

func TestConnectBudgetExhaustion(t *testing.T) {
	c, m := newTestController()
	m.OpenErr = errors.New("no such device")

	err := c.ProgramMode()
	if !errors.Is(err, usbconn.ErrDeviceUnavailable) {
		t.Fatalf("Expected device unavailable, got %v", err)
	}
	if m.Opens() != 10 {
		t.Errorf("Expected exactly 10 open attempts, got %d", m.Opens())
	}

	// Automatic reconnection is now disabled: no further open attempts
	// until an explicit manual reset.
	err = c.ProgramMode()
	if !errors.Is(err, usbconn.ErrDeviceUnavailable) {
		t.Fatalf("Expected device unavailable, got %v", err)
	}
	if m.Opens() != 10 {
		t.Errorf("Disabled reconnection still attempted opens: %d", m.Opens())
	}

	m.OpenErr = nil
	c.ResetFailure()
	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode after manual reset failed: %v", err)
	}
	if c.Mode() != ModeProgram {
		t.Errorf("Expected program mode, got %v", c.Mode())
	}
}

func TestRawModeSkipsWaits(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	c.RawMode()

	// A never-ready device would hang the waits in any other mode.
	m.SetStatus([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	if err := c.WaitReady(); err != nil {
		t.Errorf("WaitReady in raw mode should be a no-op: %v", err)
	}
	if err := c.WaitIdle(); err != nil {
		t.Errorf("WaitIdle in raw mode should be a no-op: %v", err)
	}
	if err := c.WaitFinished(); err != nil {
		t.Errorf("WaitFinished in raw mode should be a no-op: %v", err)
	}
}

func TestWobbleMarkEmitsIntermediates(t *testing.T) {
	c, _ := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	c.SetWobble(map[string]any{
		"wobble_enabled":  true,
		"wobble_type":     "circle",
		"wobble_radius":   0.1,
		"wobble_interval": 0.05,
		"wobble_speed":    1.0,
	})

	base := c.list.Len()
	if err := c.Mark(2000, 0); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	emitted := c.list.Len() - base
	if emitted < 2 {
		t.Errorf("Wobble mark should emit multiple sub-segments, got %d", emitted)
	}
	if x, y := c.Position(); x != 2000 || y != 0 {
		t.Errorf("Position should land on the destination, got (%d, %d)", x, y)
	}

	// Disabling discards the modulator.
	c.SetWobble(map[string]any{"wobble_enabled": false})
	base = c.list.Len()
	if err := c.Mark(3000, 0); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if c.list.Len() != base+1 {
		t.Errorf("Plain mark should emit one entry, got %d", c.list.Len()-base)
	}
}

func TestRawWriteDispatch(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	frames := len(m.Frames())
	base := c.list.Len()

	// List id: queued, not transmitted.
	if err := c.RawWrite(protocol.OpListJumpTo, 10, 10); err != nil {
		t.Fatalf("RawWrite list id failed: %v", err)
	}
	if c.list.Len() != base+1 {
		t.Error("List id should queue one entry")
	}
	if len(m.Frames()) != frames {
		t.Error("List id should not hit the transport")
	}

	// Immediate id: one frame on the wire, straight away.
	if err := c.RawWrite(protocol.OpGetVersion); err != nil {
		t.Fatalf("RawWrite immediate id failed: %v", err)
	}
	if len(m.Frames()) != frames+1 {
		t.Errorf("Immediate id should write one frame, wrote %d", len(m.Frames())-frames)
	}
}

func TestJumpSpeedReappliedAfterListReset(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	if err := c.SetJumpSpeed(3000); err != nil {
		t.Fatalf("SetJumpSpeed failed: %v", err)
	}
	if err := c.RapidMode(); err != nil {
		t.Fatalf("RapidMode failed: %v", err)
	}

	// The device list was reset on re-entry, so the explicit jump speed
	// must go out again even though the cache saw it last session.
	if err := c.ProgramMode(); err != nil {
		t.Fatalf("Second ProgramMode failed: %v", err)
	}
	if err := c.RapidMode(); err != nil {
		t.Fatalf("Second RapidMode failed: %v", err)
	}

	pkts := packets(m)
	if len(pkts) != 2 {
		t.Fatalf("Expected 2 list packets, got %d", len(pkts))
	}
	want := protocol.SpeedToUnits(3000, c.settings.UnitsPerMM())
	found := false
	for _, e := range entries(pkts[1]) {
		if e.ID == protocol.OpListJumpSpeed && e.Params[0] == want {
			found = true
		}
	}
	if !found {
		t.Errorf("Second session did not re-emit jump speed %d units", want)
	}
}

func TestPausedWaitSkipsPollingUntilShutdown(t *testing.T) {
	c, m := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	before := len(m.Frames())

	done := make(chan error, 1)
	go func() { done <- c.WaitReady() }()

	time.Sleep(50 * time.Millisecond)
	if n := len(m.Frames()); n != before {
		t.Errorf("Paused wait polled the device: %d new frames", n-before)
	}

	c.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitReady returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return after shutdown")
	}
	if n := len(m.Frames()); n != before {
		t.Errorf("Shutdown exit still polled the device: %d new frames", n-before)
	}
}

func TestWobbleOutOfRangeIntermediateDropped(t *testing.T) {
	c, _ := newTestController()

	if err := c.ProgramMode(); err != nil {
		t.Fatalf("ProgramMode failed: %v", err)
	}
	// Sine wobble in device units: the second intermediate swings to
	// y = -0.7, which rounds to -1 and must be dropped.
	c.wobble = NewWobble("sine", 0.7, 5, -math.Pi/2)

	base := c.list.Len()
	if err := c.Mark(10, 0); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if got := c.list.Len() - base; got != 2 {
		t.Errorf("Expected in-range intermediate plus destination (2 entries), got %d", got)
	}
}
