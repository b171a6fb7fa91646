package usbconn

import (
	"errors"

	"github.com/rs/zerolog"

	"galvo/protocol"
)

// errInjected is the transient fault injected by FailWrites/FailReads.
var errInjected = errors.New("injected transfer failure")

// MockConnection simulates a galvo controller in memory. It honors the
// same frame-length contract and retry discipline as the USB transport,
// and records every frame it accepts so tests can assert on traffic.
type MockConnection struct {
	log    zerolog.Logger
	policy RetryPolicy

	open   map[int]bool
	frames [][]byte
	status []byte

	// Test hooks.
	OpenErr       error // returned by Open when set
	pendingWrites int   // injected transient write failures
	pendingReads  int   // injected transient read failures
	reopens       int
	opens         int
}

// NewMockConnection returns a simulated transport whose status replies
// report ready and idle.
func NewMockConnection(log zerolog.Logger) *MockConnection {
	return &MockConnection{
		log:    log,
		policy: TransferRetry,
		open:   make(map[int]bool),
		status: []byte{0x00, 0x00, protocol.StatusReady, 0x00, 0x00, 0x00, 0x00, 0x00},
	}
}

// SetRetryPolicy overrides the per-transfer policy (tests shrink the
// delay to keep retry scenarios fast).
func (m *MockConnection) SetRetryPolicy(p RetryPolicy) {
	m.policy = p
}

// SetStatus sets the 8-byte reply returned by Read.
func (m *MockConnection) SetStatus(status []byte) {
	m.status = status
}

// FailWrites makes the next n write transfers fail before succeeding.
func (m *MockConnection) FailWrites(n int) {
	m.pendingWrites = n
}

// FailReads makes the next n read transfers fail before succeeding.
func (m *MockConnection) FailReads(n int) {
	m.pendingReads = n
}

// Frames returns every frame accepted so far.
func (m *MockConnection) Frames() [][]byte {
	return m.frames
}

// Reopens returns how many close/reopen recovery cycles ran.
func (m *MockConnection) Reopens() int {
	return m.reopens
}

// Opens returns how many open attempts were made.
func (m *MockConnection) Opens() int {
	return m.opens
}

// Open marks the index as connected. The simulator never rejects an
// index unless a test injected OpenErr.
func (m *MockConnection) Open(index int) (int, error) {
	m.opens++
	if m.OpenErr != nil {
		return -1, m.OpenErr
	}
	m.open[index] = true
	m.log.Debug().Int("device", index).Msg("mock device opened")
	return index, nil
}

func (m *MockConnection) Close(index int) error {
	delete(m.open, index)
	m.log.Debug().Int("device", index).Msg("mock device closed")
	return nil
}

func (m *MockConnection) IsOpen(index int) bool {
	return m.open[index]
}

func (m *MockConnection) Write(index int, frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	if !m.open[index] {
		return ErrNotConnected
	}
	_, err := transfer(m, m.log, m.policy, index, frame, false)
	return err
}

func (m *MockConnection) Read(index int) ([]byte, error) {
	if !m.open[index] {
		return nil, ErrNotConnected
	}
	return transfer(m, m.log, m.policy, index, nil, true)
}

func (m *MockConnection) transferOnce(index int, frame []byte, read bool) ([]byte, error) {
	if read {
		if m.pendingReads > 0 {
			m.pendingReads--
			return nil, errInjected
		}
		out := make([]byte, len(m.status))
		copy(out, m.status)
		return out, nil
	}
	if m.pendingWrites > 0 {
		m.pendingWrites--
		return nil, errInjected
	}
	kept := make([]byte, len(frame))
	copy(kept, frame)
	m.frames = append(m.frames, kept)
	return nil, nil
}

func (m *MockConnection) reopen(index int) error {
	m.Close(index)
	m.reopens++
	_, err := m.Open(index)
	return err
}
