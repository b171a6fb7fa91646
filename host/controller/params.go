package controller

import (
	"math"

	"galvo/protocol"
)

// Tunable parameter setters. Each compares the request against the last
// written value and emits nothing when unchanged: every list entry
// costs buffer capacity and device execution time, so the dedup is a
// throughput optimization, not just idempotence. A changed value emits
// exactly one list write, never coalesced or reordered.

// SetMarkSpeed sets the beam-on speed in mm/s.
func (c *Controller) SetMarkSpeed(speed float64) error {
	if speed == c.cache.markSpeed {
		return nil
	}
	c.cache.markSpeed = speed
	units := protocol.SpeedToUnits(speed, c.settings.UnitsPerMM())
	return c.submit(protocol.Listed(protocol.OpListMarkSpeed, units))
}

// SetJumpSpeed sets the beam-off travel speed in mm/s. The value is
// remembered and re-applied when a mode transition resets the device.
func (c *Controller) SetJumpSpeed(speed float64) error {
	c.travelSpeed = speed
	if speed == c.cache.jumpSpeed {
		return nil
	}
	c.cache.jumpSpeed = speed
	units := protocol.SpeedToUnits(speed, c.settings.UnitsPerMM())
	return c.submit(protocol.Listed(protocol.OpListJumpSpeed, units))
}

// SetFrequency sets the q-switch frequency in kHz.
func (c *Controller) SetFrequency(kHz float64) error {
	if kHz == c.cache.frequency {
		return nil
	}
	c.cache.frequency = kHz
	return c.submit(protocol.Listed(protocol.OpListQSwitchPeriod, protocol.FrequencyToPeriod(kHz)))
}

// SetPower sets the laser power as a percentage.
func (c *Controller) SetPower(percent float64) error {
	if percent == c.cache.power {
		return nil
	}
	c.cache.power = percent
	return c.submit(protocol.Listed(protocol.OpListMarkPowerRatio, protocol.PowerToDAC(percent)))
}

// SetLaserOnDelay sets the beam-on settling delay in µs.
func (c *Controller) SetLaserOnDelay(us float64) error {
	if us == c.cache.onDelay {
		return nil
	}
	c.cache.onDelay = us
	return c.submit(protocol.Listed(protocol.OpListLaserOnDelay, delayUnits(us)))
}

// SetLaserOffDelay sets the beam-off settling delay in µs.
func (c *Controller) SetLaserOffDelay(us float64) error {
	if us == c.cache.offDelay {
		return nil
	}
	c.cache.offDelay = us
	return c.submit(protocol.Listed(protocol.OpListLaserOffDelay, delayUnits(us)))
}

// SetJumpDelay sets the post-jump settling delay in µs.
func (c *Controller) SetJumpDelay(us float64) error {
	if us == c.cache.jumpDelay {
		return nil
	}
	c.cache.jumpDelay = us
	return c.submit(protocol.Listed(protocol.OpListJumpDelay, delayUnits(us)))
}

// SetPolygonDelay sets the inter-segment delay in µs.
func (c *Controller) SetPolygonDelay(us float64) error {
	if us == c.cache.polyDelay {
		return nil
	}
	c.cache.polyDelay = us
	return c.submit(protocol.Listed(protocol.OpListPolygonDelay, delayUnits(us)))
}

func delayUnits(us float64) uint16 {
	v := math.Round(us)
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// SetSettings overlays an external settings mapping and reconfigures
// the wobble modulator from the merged values.
func (c *Controller) SetSettings(m map[string]any) {
	c.settings.Apply(m)
	c.configureWobble()
}

// SetWobble reconfigures only the wobble modulator from a mapping.
func (c *Controller) SetWobble(m map[string]any) {
	c.settings.Apply(m)
	c.configureWobble()
}

func (c *Controller) configureWobble() {
	if !c.settings.WobbleEnabled {
		c.wobble = nil
		return
	}
	scale := c.settings.UnitsPerMM()
	c.wobble = NewWobble(
		c.settings.WobbleType,
		c.settings.WobbleRadius*scale,
		c.settings.WobbleInterval*scale,
		c.settings.WobbleSpeed,
	)
	c.log.Debug().
		Str("type", c.settings.WobbleType).
		Float64("radius_mm", c.settings.WobbleRadius).
		Float64("interval_mm", c.settings.WobbleInterval).
		Msg("wobble configured")
}

// Thin wrappers over individual opcodes, for diagnostics and raw device
// access. The parameterless ones match the controller firmware, which
// takes no arguments for these operations.

// EnableLaser arms the laser source.
func (c *Controller) EnableLaser() error {
	return c.submit(protocol.Immediate(protocol.OpEnableLaser))
}

// DisableLaser disarms the laser source.
func (c *Controller) DisableLaser() error {
	return c.submit(protocol.Immediate(protocol.OpDisableLaser))
}

// LaserSignalOn raises the laser gate signal.
func (c *Controller) LaserSignalOn() error {
	return c.submit(protocol.Immediate(protocol.OpLaserSignalOn))
}

// LaserSignalOff drops the laser gate signal.
func (c *Controller) LaserSignalOff() error {
	return c.submit(protocol.Immediate(protocol.OpLaserSignalOff))
}

// ExecuteList starts execution of transmitted packets.
func (c *Controller) ExecuteList() error {
	return c.submit(protocol.Immediate(protocol.OpExecuteList))
}

// StopList halts list execution at the current entry.
func (c *Controller) StopList() error {
	return c.submit(protocol.Immediate(protocol.OpStopList))
}

// RestartList resumes a halted list.
func (c *Controller) RestartList() error {
	return c.submit(protocol.Immediate(protocol.OpRestartList))
}

// ResetList discards buffered entries on the device.
func (c *Controller) ResetList() error {
	return c.submit(protocol.Immediate(protocol.OpResetList))
}

// GetVersion queries the firmware version word.
func (c *Controller) GetVersion() (uint16, error) {
	if err := c.submit(protocol.Immediate(protocol.OpGetVersion)); err != nil {
		return 0, err
	}
	return c.lastStatus[1], nil
}

// GetSerialNo queries the controller serial number word.
func (c *Controller) GetSerialNo() (uint16, error) {
	if err := c.submit(protocol.Immediate(protocol.OpGetSerialNo)); err != nil {
		return 0, err
	}
	return c.lastStatus[1], nil
}

// LightOn turns the pointer diode on immediately.
func (c *Controller) LightOn() error {
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	c.port |= PortPointer
	return c.writePort()
}

// LightOff turns the pointer diode off immediately.
func (c *Controller) LightOff() error {
	if err := c.connectIfNeeded(); err != nil {
		return err
	}
	c.port &^= PortPointer
	return c.writePort()
}

// PortBits returns the current output-port bit mask.
func (c *Controller) PortBits() uint16 {
	return c.port
}
