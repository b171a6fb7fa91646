package controller

import (
	"math"
	"strings"
)

// Point is a position in device coordinate space.
type Point struct {
	X, Y float64
}

// Perturbation maps a straight segment onto a finite sequence of
// intermediate points. The driver only consumes this contract; the
// built-in wobble algorithms below are one producer of it.
type Perturbation func(start, end Point) []Point

// Wobble superimposes a small oscillation on the nominal path. It is
// stateful: the arc-length accumulator and phase carry across segments
// so the oscillation is continuous along a polyline.
type Wobble struct {
	radius   float64 // device units
	interval float64 // device units between emitted points
	speed    float64 // phase advance per interval step, radians

	offset    func(w *Wobble, base Point, nx, ny float64) Point
	phase     float64
	remainder float64 // partial interval carried into the next segment
}

// NewWobble builds a modulator. Radius and interval are in device
// units; typ selects the algorithm (circle, sine, sawtooth), defaulting
// to circle.
func NewWobble(typ string, radius, interval, speed float64) *Wobble {
	w := &Wobble{
		radius:   radius,
		interval: interval,
		speed:    speed,
	}
	switch strings.ToLower(typ) {
	case "sine", "sinewave":
		w.offset = sineOffset
	case "sawtooth":
		w.offset = sawtoothOffset
	default:
		w.offset = circleOffset
	}
	if w.interval <= 0 {
		w.interval = 1
	}
	return w
}

// Points implements the Perturbation contract: intermediate perturbed
// points along start->end at the fixed arc-length interval. The final
// destination is not included; callers close the segment themselves.
func (w *Wobble) Points(start, end Point) []Point {
	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil
	}
	ux := dx / length
	uy := dy / length
	// Perpendicular for the transverse algorithms.
	nx, ny := -uy, ux

	var out []Point
	pos := w.remainder
	for pos < length {
		base := Point{X: start.X + ux*pos, Y: start.Y + uy*pos}
		out = append(out, w.offset(w, base, nx, ny))
		w.phase += w.speed
		pos += w.interval
	}
	w.remainder = pos - length
	return out
}

func circleOffset(w *Wobble, base Point, nx, ny float64) Point {
	return Point{
		X: base.X + w.radius*math.Cos(w.phase),
		Y: base.Y + w.radius*math.Sin(w.phase),
	}
}

func sineOffset(w *Wobble, base Point, nx, ny float64) Point {
	d := w.radius * math.Sin(w.phase)
	return Point{X: base.X + nx*d, Y: base.Y + ny*d}
}

func sawtoothOffset(w *Wobble, base Point, nx, ny float64) Point {
	// Ramp from -1 to 1 over each period, then snap back.
	_, frac := math.Modf(w.phase / (2 * math.Pi))
	if frac < 0 {
		frac++
	}
	d := 2*frac - 1
	return Point{X: base.X + nx*w.radius*d, Y: base.Y + ny*w.radius*d}
}
