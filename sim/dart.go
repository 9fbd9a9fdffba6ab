package sim

import (
	"math"

	"github.com/knmorgan/nova/geom"
)

const (
	DartSpeed    = 20.0
	DartAimTicks = 200
	dartTurnRate = math.Pi / 64
	dartDeadband = math.Pi / 128
)

var dartShape = geom.Polygon(true,
	geom.Vec{X: -10, Y: -10},
	geom.Vec{X: 0, Y: 30},
	geom.Vec{X: 10, Y: -10},
	geom.Vec{X: 0, Y: 0},
)

// DartShip turns to face the player, then every DartAimTicks launches itself
// nose first until it hits a wall.
type DartShip struct {
	Body

	timer   int
	darting bool
}

// NewDart places a dart at pos already facing target.
func NewDart(pos, target geom.Vec) *DartShip {
	d := &DartShip{}
	d.Pos = pos
	d.Rotation = headingTo(pos, target)
	return d
}

func (d *DartShip) Kind() Kind { return KindDart }
func (d *DartShip) Shape() []geom.Segment { return dartShape }
func (d *DartShip) Color() Color { return ColorOrange }
func (d *DartShip) PointValue() int { return 200 }

// Accelerate is a no-op; darts only move under their own power.
func (d *DartShip) Accelerate(force, dir float64) {}

// Darting reports whether the dart is mid-dash.
func (d *DartShip) Darting() bool { return d.darting }

func (d *DartShip) Update(w *World) {
	if d.darting {
		d.Pos = d.Pos.Add(d.Vel)
		if ClampInto(d, w.Arena) {
			d.darting = false
			d.Vel = geom.Vec{}
		}
		return
	}

	diff := NormalizeAngle(headingTo(d.Pos, w.Player.Pos) - d.Rotation)
	if diff > dartDeadband {
		d.Rotation += dartTurnRate
	} else if diff < -dartDeadband {
		d.Rotation -= dartTurnRate
	}
	d.Rotation = NormalizeAngle(d.Rotation)
	ClampInto(d, w.Arena)

	d.timer++
	if d.timer == DartAimTicks {
		d.timer = 0
		d.darting = true
		d.Vel = geom.Polar(DartSpeed, d.Rotation+math.Pi/2)
	}
}

// headingTo is the rotation that points a ship's local +y axis from p at q.
func headingTo(p, q geom.Vec) float64 {
	return q.Sub(p).Angle() - math.Pi/2
}
