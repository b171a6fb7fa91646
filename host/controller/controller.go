// Package controller drives one LMC galvo laser controller: it owns the
// mode state machine, the accumulating list command buffer, cached
// parameter state and the connection lifecycle.
package controller

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"galvo/host/usbconn"
	"galvo/protocol"
)

// Mode of the controller state machine.
type Mode int

const (
	// ModeUnknown is the pre-connect state.
	ModeUnknown Mode = iota
	// ModeRapid: idle, no pending list, device open for polling.
	ModeRapid
	// ModeLight: pointer beam on for positioning/tracing.
	ModeLight
	// ModeProgram: accumulating list commands for marking.
	ModeProgram
	// ModeRaw bypasses all gating and waiting, for direct diagnostics.
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeRapid:
		return "rapid"
	case ModeLight:
		return "light"
	case ModeProgram:
		return "program"
	case ModeRaw:
		return "raw"
	}
	return "unknown"
}

// Output port bits.
const (
	// PortLaser enables the laser source while marking.
	PortLaser = 1 << 0
	// PortPointer drives the red-dot pointer diode.
	PortPointer = 1 << 8
)

const pollInterval = 10 * time.Millisecond

// paramCache holds the last value written for each tunable parameter.
// NaN marks a cleared entry; NaN compares unequal to everything, so the
// next setter call always re-emits.
type paramCache struct {
	markSpeed float64
	jumpSpeed float64
	frequency float64
	power     float64
	onDelay   float64
	offDelay  float64
	jumpDelay float64
	polyDelay float64
}

func clearedCache() paramCache {
	n := math.NaN()
	return paramCache{n, n, n, n, n, n, n, n}
}

// Controller serializes commands to one galvo device. It is not safe
// for concurrent use: one calling goroutine owns an instance.
type Controller struct {
	log      zerolog.Logger
	settings *Settings

	conn          usbconn.Connection
	index         int
	connectPolicy usbconn.RetryPolicy
	connectFailed bool

	mode     Mode
	paused   bool
	shutdown atomic.Bool

	list          *protocol.ListBuffer
	listExecuting bool
	packetCount   int

	x, y uint16
	port uint16

	cache       paramCache
	travelSpeed float64

	wobble     *Wobble
	correction [][5]uint16

	lastStatus protocol.Status
}

// New returns a controller for device index 0. The connection is
// created lazily on first use, per the settings (mock or USB).
func New(settings *Settings, log zerolog.Logger) *Controller {
	if settings == nil {
		settings = DefaultSettings()
	}
	return &Controller{
		log:           log,
		settings:      settings,
		index:         0,
		connectPolicy: usbconn.ConnectRetry,
		list:          protocol.NewListBuffer(),
		cache:         clearedCache(),
		travelSpeed:   settings.RapidSpeed,
	}
}

// SetConnection injects a transport, replacing lazy selection.
func (c *Controller) SetConnection(conn usbconn.Connection) {
	c.conn = conn
}

// SetConnectPolicy overrides the connect retry policy.
func (c *Controller) SetConnectPolicy(p usbconn.RetryPolicy) {
	c.connectPolicy = p
}

// Connection returns the active transport, if any.
func (c *Controller) Connection() usbconn.Connection {
	return c.conn
}

// Mode returns the current state-machine mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Position returns the last-known beam position.
func (c *Controller) Position() (x, y uint16) {
	return c.x, c.y
}

// Shutdown sets the cooperative shutdown flag; blocking waits observe
// it between poll iterations and exit promptly.
func (c *Controller) Shutdown() {
	c.shutdown.Store(true)
}

// ResetFailure re-arms automatic reconnection after the connect budget
// was exhausted. Explicit manual action only.
func (c *Controller) ResetFailure() {
	c.connectFailed = false
}

// connectIfNeeded lazily creates the transport, opens the device and
// runs the initialization sequence, retrying the whole sequence under
// the connect policy. After the budget is exhausted reconnection stays
// disabled until ResetFailure.
func (c *Controller) connectIfNeeded() error {
	if c.conn != nil && c.conn.IsOpen(c.index) {
		return nil
	}
	if c.connectFailed {
		return fmt.Errorf("%w: reconnection disabled after repeated failures",
			usbconn.ErrDeviceUnavailable)
	}
	if c.conn == nil {
		if c.settings.Mock {
			c.conn = usbconn.NewMockConnection(c.log)
		} else {
			c.conn = usbconn.NewUSBConnection(c.log)
		}
	}

	err := c.connectPolicy.Run(func() error {
		if _, err := c.conn.Open(c.index); err != nil {
			c.log.Warn().Int("device", c.index).Err(err).Msg("open attempt failed")
			return err
		}
		if err := c.initSequence(); err != nil {
			c.log.Warn().Int("device", c.index).Err(err).Msg("device init failed")
			c.conn.Close(c.index)
			return err
		}
		return nil
	})
	if err != nil {
		c.connectFailed = true
		if errors.Is(err, usbconn.ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: connect attempts exhausted: %v",
			usbconn.ErrDeviceUnavailable, err)
	}

	c.mode = ModeRapid
	c.paused = false
	c.list.Clear()
	c.listExecuting = false
	c.packetCount = 0
	c.cache = clearedCache()
	c.log.Info().Int("device", c.index).Msg("controller connected and initialized")
	return nil
}

// initSequence brings a freshly opened device to a known state.
func (c *Controller) initSequence() error {
	steps := []protocol.Command{
		protocol.Immediate(protocol.OpResetList),
	}
	for _, cmd := range steps {
		if err := c.exchange(cmd); err != nil {
			return err
		}
	}
	if err := c.writeCorrection(); err != nil {
		return err
	}
	post := []protocol.Command{
		protocol.Immediate(protocol.OpEnableLaser),
		protocol.Immediate(protocol.OpSetControlMode, 1),
		protocol.Immediate(protocol.OpSetStandby, 512, 2),
		protocol.Immediate(protocol.OpSetPwmHalfPeriod, 125),
		protocol.Immediate(protocol.OpSetPwmPulseWidth, uint16(math.Round(c.settings.PulseWidth))),
	}
	if c.settings.TimingEnabled {
		post = append(post,
			protocol.Immediate(protocol.OpSetDelayMode, 1),
			protocol.Immediate(protocol.OpSetTiming, uint16(math.Round(c.settings.DelayLaserOn))),
		)
	}
	for _, cmd := range post {
		if err := c.exchange(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetCorrection installs the galvo calibration table: one WriteCorLine
// frame per row, uploaded during device initialization. A nil table
// disables field correction.
func (c *Controller) SetCorrection(lines [][5]uint16) {
	c.correction = lines
}

func (c *Controller) writeCorrection() error {
	if c.correction == nil {
		return c.exchange(protocol.Immediate(protocol.OpWriteCorTable, 0))
	}
	if err := c.exchange(protocol.Immediate(protocol.OpWriteCorTable, 1)); err != nil {
		return err
	}
	for _, row := range c.correction {
		cmd := protocol.Immediate(protocol.OpWriteCorLine, row[0], row[1], row[2], row[3], row[4])
		if err := c.exchange(cmd); err != nil {
			return err
		}
	}
	return nil
}

// RawWrite replays a raw opcode, classified by the legacy 0x8000
// threshold: list ids accumulate into the packet buffer, immediate ids
// perform a synchronous exchange.
func (c *Controller) RawWrite(id uint16, params ...uint16) error {
	return c.submit(protocol.FromRaw(id, params...))
}

// submit routes one command by its framing kind.
func (c *Controller) submit(cmd protocol.Command) error {
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	if cmd.Kind == protocol.KindListed {
		c.list.Append(cmd)
		if c.list.Full() {
			return c.flushList()
		}
		return nil
	}
	return c.exchange(cmd)
}

// exchange performs the synchronous request/reply transaction of an
// immediate command and caches the decoded status.
func (c *Controller) exchange(cmd protocol.Command) error {
	if err := c.conn.Write(c.index, cmd.Frame()); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	raw, err := c.conn.Read(c.index)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	c.lastStatus = protocol.DecodeStatus(raw)
	return nil
}

// flushList transmits the padded packet. Execution on the device is
// started once more than one packet is in flight; a single packet is
// started explicitly on return to rapid mode.
func (c *Controller) flushList() error {
	if c.list.Empty() {
		return nil
	}
	if err := c.WaitReady(); err != nil {
		return err
	}
	for c.paused && !c.shutdown.Load() {
		time.Sleep(pollInterval)
	}
	if err := c.conn.Write(c.index, c.list.Packet()); err != nil {
		return err
	}
	c.packetCount++
	if c.packetCount > 1 && !c.listExecuting {
		if err := c.exchange(protocol.Immediate(protocol.OpExecuteList)); err != nil {
			return err
		}
		c.listExecuting = true
	}
	return nil
}

// RapidMode flushes and closes any pending list, ensures the device was
// told to execute it, waits for idle and drops the pointer bit.
func (c *Controller) RapidMode() error {
	if c.mode == ModeRapid {
		return nil
	}
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	if !c.list.Empty() {
		c.list.Append(protocol.Listed(protocol.OpListEndOfList))
		if err := c.flushList(); err != nil {
			return err
		}
	}
	if c.packetCount > 0 && !c.listExecuting {
		if err := c.exchange(protocol.Immediate(protocol.OpExecuteList)); err != nil {
			return err
		}
	}
	c.listExecuting = false
	c.packetCount = 0
	if err := c.WaitIdle(); err != nil {
		return err
	}
	c.port &^= PortPointer
	if err := c.writePort(); err != nil {
		return err
	}
	c.mode = ModeRapid
	c.log.Debug().Msg("entered rapid mode")
	return nil
}

// ProgramMode prepares list accumulation for marking. Arriving from
// light mode only swaps the port bits; any other origin resets the
// device list, which invalidates every cached parameter.
func (c *Controller) ProgramMode() error {
	if c.mode == ModeProgram {
		return nil
	}
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	if c.mode == ModeLight {
		c.port &^= PortPointer
		c.port |= PortLaser
		if err := c.writePort(); err != nil {
			return err
		}
		c.mode = ModeProgram
		return nil
	}
	if err := c.exchange(protocol.Immediate(protocol.OpResetList)); err != nil {
		return err
	}
	c.list.Clear()
	c.listExecuting = false
	c.packetCount = 0
	c.port |= PortLaser
	c.port &^= PortPointer
	if err := c.writePort(); err != nil {
		return err
	}
	c.mode = ModeProgram
	// The device list was just reset: every parameter must re-emit,
	// including the travel speed re-applied below.
	c.cache = clearedCache()
	if err := c.SetJumpSpeed(c.travelSpeed); err != nil {
		return err
	}
	c.log.Debug().Msg("entered program mode")
	return nil
}

// LightMode is the pointer-beam mirror image of ProgramMode.
func (c *Controller) LightMode() error {
	if c.mode == ModeLight {
		return nil
	}
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	if c.mode == ModeProgram {
		c.port |= PortPointer
		c.port &^= PortLaser
		if err := c.writePort(); err != nil {
			return err
		}
		c.mode = ModeLight
		return nil
	}
	if err := c.exchange(protocol.Immediate(protocol.OpResetList)); err != nil {
		return err
	}
	c.list.Clear()
	c.listExecuting = false
	c.packetCount = 0
	c.port |= PortPointer
	c.port &^= PortLaser
	if err := c.writePort(); err != nil {
		return err
	}
	c.mode = ModeLight
	c.cache = clearedCache()
	if err := c.SetJumpSpeed(c.travelSpeed); err != nil {
		return err
	}
	c.log.Debug().Msg("entered light mode")
	return nil
}

// RawMode sets the diagnostic mode directly, with no side effects. All
// wait and poll operations become no-ops.
func (c *Controller) RawMode() {
	c.mode = ModeRaw
}

// Status performs a port read and returns the decoded status word.
func (c *Controller) Status() (protocol.Status, error) {
	if err := c.connectIfNeeded(); err != nil {
		return protocol.Status{}, err
	}
	if err := c.exchange(protocol.Immediate(protocol.OpReadPort)); err != nil {
		return protocol.Status{}, err
	}
	return c.lastStatus, nil
}

// IsReady reports whether the controller accepts list packets.
func (c *Controller) IsReady() bool {
	st, err := c.Status()
	return err == nil && st.Ready()
}

// IsBusy reports whether a list is still executing.
func (c *Controller) IsBusy() bool {
	st, err := c.Status()
	return err == nil && st.Busy()
}

// waitFor polls the status word until done reports true. No-op in raw
// mode; exits promptly on the shutdown flag; spins without touching
// hardware while paused.
func (c *Controller) waitFor(op uint16, done func(protocol.Status) bool) error {
	if c.mode == ModeRaw {
		return nil
	}
	for {
		if c.shutdown.Load() {
			return nil
		}
		if c.paused {
			time.Sleep(pollInterval)
			continue
		}
		if err := c.exchange(protocol.Immediate(op)); err != nil {
			return err
		}
		if done(c.lastStatus) {
			return nil
		}
		time.Sleep(pollInterval)
	}
}

// WaitReady blocks until the device accepts another list packet.
func (c *Controller) WaitReady() error {
	return c.waitFor(protocol.OpReadPort, protocol.Status.Ready)
}

// WaitIdle blocks until list execution stops.
func (c *Controller) WaitIdle() error {
	return c.waitFor(protocol.OpReadPort, func(s protocol.Status) bool {
		return !s.Busy()
	})
}

// WaitFinished blocks until the list reports fully drained.
func (c *Controller) WaitFinished() error {
	return c.waitFor(protocol.OpGetListStatus, func(s protocol.Status) bool {
		return !s.Busy() && s.Ready()
	})
}

// Pause halts list execution. Blocking waits spin without polling the
// device until Resume.
func (c *Controller) Pause() error {
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	if err := c.exchange(protocol.Immediate(protocol.OpStopList)); err != nil {
		return err
	}
	c.paused = true
	c.log.Info().Msg("paused")
	return nil
}

// Resume restarts a paused list.
func (c *Controller) Resume() error {
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	if err := c.exchange(protocol.Immediate(protocol.OpRestartList)); err != nil {
		return err
	}
	c.paused = false
	c.log.Info().Msg("resumed")
	return nil
}

// Abort stops execution, resets the list and sends a terminating packet
// so the firmware does not hang awaiting more data, then returns to
// rapid mode with port bits cleared.
func (c *Controller) Abort() error {
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	if err := c.exchange(protocol.Immediate(protocol.OpStopExecute)); err != nil {
		return err
	}
	if err := c.exchange(protocol.Immediate(protocol.OpResetList)); err != nil {
		return err
	}
	c.list.Clear()
	if err := c.conn.Write(c.index, c.list.Packet()); err != nil {
		return err
	}
	c.listExecuting = false
	c.packetCount = 0
	c.paused = false
	c.cache = clearedCache()
	c.port &^= PortPointer
	c.port &^= PortLaser
	if err := c.writePort(); err != nil {
		return err
	}
	c.mode = ModeRapid
	c.log.Info().Msg("aborted")
	return nil
}

// Disconnect tears the transport down. The next command reconnects.
func (c *Controller) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(c.index)
	c.mode = ModeUnknown
	return err
}

func (c *Controller) writePort() error {
	return c.exchange(protocol.Immediate(protocol.OpWritePort, c.port))
}
