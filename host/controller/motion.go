package controller

import (
	"math"

	"galvo/protocol"
)

// Coordinate policy shared by all motion primitives: a destination
// equal to the current position emits nothing, and a destination with
// either axis outside [0, 0xFFFF] is silently dropped. Out-of-range
// moves are a clamp-or-skip policy decision, not an error.

func inRange(x, y int) bool {
	return x >= 0 && x <= 0xFFFF && y >= 0 && y <= 0xFFFF
}

// Mark moves to (x, y) with the beam on. With a wobble modulator
// active, the segment is replaced by its perturbed intermediate points,
// each emitted as its own mark entry; the tracked position moves to the
// final destination only after every sub-segment is queued.
func (c *Controller) Mark(x, y int) error {
	if !inRange(x, y) {
		c.log.Debug().Int("x", x).Int("y", y).Msg("mark destination out of range, dropped")
		return nil
	}
	ux, uy := uint16(x), uint16(y)
	if ux == c.x && uy == c.y {
		return nil
	}
	if c.wobble != nil {
		start := Point{X: float64(c.x), Y: float64(c.y)}
		end := Point{X: float64(x), Y: float64(y)}
		for _, p := range c.wobble.Points(start, end) {
			px, py := int(math.Round(p.X)), int(math.Round(p.Y))
			if !inRange(px, py) {
				continue
			}
			if err := c.submit(protocol.Listed(protocol.OpListMarkTo, uint16(px), uint16(py))); err != nil {
				return err
			}
		}
		if err := c.submit(protocol.Listed(protocol.OpListMarkTo, ux, uy)); err != nil {
			return err
		}
	} else {
		if err := c.submit(protocol.Listed(protocol.OpListMarkTo, ux, uy)); err != nil {
			return err
		}
	}
	c.x, c.y = ux, uy
	return nil
}

// Goto moves to (x, y) with the beam off.
func (c *Controller) Goto(x, y int) error {
	return c.jump(x, y)
}

// Light moves to (x, y) with the beam off and the pointer diode on.
func (c *Controller) Light(x, y int) error {
	if c.port&PortPointer == 0 {
		c.port |= PortPointer
		if err := c.submit(protocol.Listed(protocol.OpListWritePort, c.port)); err != nil {
			return err
		}
	}
	return c.jump(x, y)
}

// Dark moves to (x, y) with both the beam and the pointer diode off.
func (c *Controller) Dark(x, y int) error {
	if c.port&PortPointer != 0 {
		c.port &^= PortPointer
		if err := c.submit(protocol.Listed(protocol.OpListWritePort, c.port)); err != nil {
			return err
		}
	}
	return c.jump(x, y)
}

func (c *Controller) jump(x, y int) error {
	if !inRange(x, y) {
		c.log.Debug().Int("x", x).Int("y", y).Msg("jump destination out of range, dropped")
		return nil
	}
	ux, uy := uint16(x), uint16(y)
	if ux == c.x && uy == c.y {
		return nil
	}
	if err := c.submit(protocol.Listed(protocol.OpListJumpTo, ux, uy)); err != nil {
		return err
	}
	c.x, c.y = ux, uy
	return nil
}

// SetXY repositions the galvos immediately, outside of any list.
func (c *Controller) SetXY(x, y int) error {
	if !inRange(x, y) {
		return nil
	}
	ux, uy := uint16(x), uint16(y)
	if err := c.submit(protocol.Immediate(protocol.OpGotoXY, ux, uy)); err != nil {
		return err
	}
	c.x, c.y = ux, uy
	return nil
}

// GetPosition queries the device for the actual galvo position.
func (c *Controller) GetPosition() (x, y uint16, err error) {
	if err := c.connectIfNeeded(); err != nil {
		return 0, 0, err
	}
	if err := c.exchange(protocol.Immediate(protocol.OpGetPositionXY)); err != nil {
		return 0, 0, err
	}
	x, y = c.lastStatus.Position()
	return x, y, nil
}
