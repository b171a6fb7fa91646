package usbconn

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"galvo/protocol"
)

func newTestMock() *MockConnection {
	m := NewMockConnection(zerolog.Nop())
	m.SetRetryPolicy(RetryPolicy{Attempts: 3, Delay: 0})
	return m
}

func TestMockOpenWriteClose(t *testing.T) {
	m := newTestMock()

	idx, err := m.Open(0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("Expected index 0, got %d", idx)
	}
	if !m.IsOpen(0) {
		t.Error("Device should be open after Open")
	}

	if err := m.Write(0, make([]byte, protocol.FrameSize)); err != nil {
		t.Errorf("Write of 12-byte frame failed: %v", err)
	}
	if len(m.Frames()) != 1 {
		t.Errorf("Expected 1 recorded frame, got %d", len(m.Frames()))
	}

	if err := m.Close(0); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if m.IsOpen(0) {
		t.Error("Device should not be open after Close")
	}
}

func TestFrameLengthContract(t *testing.T) {
	m := newTestMock()
	m.Open(0)

	for _, n := range []int{0, 1, 8, 11, 13, 3071, 3073, 4096} {
		err := m.Write(0, make([]byte, n))
		if !errors.Is(err, ErrProtocolViolation) {
			t.Errorf("Length %d: expected protocol violation, got %v", n, err)
		}
	}

	// Contract violations must not reach the transport.
	if len(m.Frames()) != 0 {
		t.Errorf("Expected no frames recorded, got %d", len(m.Frames()))
	}

	if err := m.Write(0, make([]byte, protocol.PacketSize)); err != nil {
		t.Errorf("Write of 3072-byte packet failed: %v", err)
	}
}

func TestWriteNotConnected(t *testing.T) {
	m := newTestMock()

	err := m.Write(5, make([]byte, protocol.FrameSize))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected not-connected error, got %v", err)
	}
	if !errors.Is(err, ErrTransportFailure) {
		t.Error("Not-connected should be a transport-failure variant")
	}

	if _, err := m.Read(5); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Read on unopened index: expected not-connected, got %v", err)
	}
}

func TestWriteRetryRecovers(t *testing.T) {
	m := newTestMock()
	m.Open(0)
	m.FailWrites(2)

	if err := m.Write(0, make([]byte, protocol.FrameSize)); err != nil {
		t.Fatalf("Write should recover after 2 transient failures: %v", err)
	}
	if m.Reopens() != 2 {
		t.Errorf("Expected exactly 2 close/reopen cycles, got %d", m.Reopens())
	}
	if len(m.Frames()) != 1 {
		t.Errorf("Expected 1 frame after recovery, got %d", len(m.Frames()))
	}
}

func TestWriteRetryExhausted(t *testing.T) {
	m := newTestMock()
	m.Open(0)
	m.FailWrites(3)

	err := m.Write(0, make([]byte, protocol.FrameSize))
	if !errors.Is(err, ErrTransportFailure) {
		t.Errorf("Expected transport failure after exhausting retries, got %v", err)
	}
	if len(m.Frames()) != 0 {
		t.Errorf("No frame should be recorded after exhaustion, got %d", len(m.Frames()))
	}
}

func TestReadRetry(t *testing.T) {
	m := newTestMock()
	m.Open(0)
	m.SetStatus([]byte{1, 0, 0x20, 0, 0, 0, 0, 0})

	m.FailReads(1)
	data, err := m.Read(0)
	if err != nil {
		t.Fatalf("Read should recover after 1 transient failure: %v", err)
	}
	if len(data) != protocol.StatusSize {
		t.Fatalf("Expected %d status bytes, got %d", protocol.StatusSize, len(data))
	}
	if !protocol.DecodeStatus(data).Ready() {
		t.Error("Status should decode as ready")
	}

	m.FailReads(3)
	if _, err := m.Read(0); !errors.Is(err, ErrTransportFailure) {
		t.Errorf("Expected transport failure, got %v", err)
	}
}

func TestRetryPolicyRun(t *testing.T) {
	p := RetryPolicy{Attempts: 4, Delay: 0}

	calls := 0
	err := p.Run(func() error {
		calls++
		if calls < 3 {
			return errInjected
		}
		return nil
	})
	if err != nil {
		t.Errorf("Run should succeed on attempt 3: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}

	calls = 0
	err = p.Run(func() error {
		calls++
		return errInjected
	})
	if err == nil {
		t.Error("Run should fail when every attempt fails")
	}
	if calls != 4 {
		t.Errorf("Expected exactly 4 attempts, got %d", calls)
	}
}
