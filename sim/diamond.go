package sim

import (
	"math"

	"github.com/knmorgan/nova/geom"
)

const (
	DiamondForce   = 0.5
	DiamondDamping = 0.90
)

// DiamondShip homes in on the player and pulses as it flies.
type DiamondShip struct {
	Body

	pulse float64
	shape []geom.Segment
}

func NewDiamond(pos geom.Vec) *DiamondShip {
	d := &DiamondShip{}
	d.Pos = pos
	d.shape = diamondShape(0)
	return d
}

func (d *DiamondShip) Kind() Kind { return KindDiamond }
func (d *DiamondShip) Shape() []geom.Segment { return d.shape }
func (d *DiamondShip) Color() Color { return ColorCyan }
func (d *DiamondShip) PointValue() int { return 100 }

func (d *DiamondShip) Accelerate(force, dir float64) {
	pushAlong(&d.Body, force, dir)
}

func (d *DiamondShip) Update(w *World) {
	d.Accelerate(DiamondForce, w.Player.Pos.Sub(d.Pos).Angle())
	d.Vel = d.Vel.Scale(DiamondDamping)
	d.Pos = d.Pos.Add(d.Vel)
	ClampInto(d, w.Arena)

	d.pulse += 0.2
	d.shape = diamondShape(pulseOffset(d.pulse))
}

// pulseOffset ramps 0..4 then back down over a ten unit period.
func pulseOffset(pulse float64) float64 {
	off := int(pulse) % 5
	if math.Mod(pulse, 10) >= 5 {
		off = 5 - off
	}
	return float64(off)
}

func diamondShape(o float64) []geom.Segment {
	return geom.Polygon(true,
		geom.Vec{X: -10 - o, Y: 0},
		geom.Vec{X: 0, Y: 20 - o},
		geom.Vec{X: 10 + o, Y: 0},
		geom.Vec{X: 0, Y: -20 + o},
	)
}
