package sim

import "github.com/knmorgan/nova/geom"

const (
	XForce    = 0.5
	XMaxSpeed = 3.0
)

var xShape = []geom.Segment{
	geom.Seg(-3, -3, 3, 3),
	geom.Seg(-3, 3, 3, -3),
}

// XShip jitters around the arena on random axis impulses.
type XShip struct {
	Body
}

func NewX(pos geom.Vec) *XShip {
	x := &XShip{}
	x.Pos = pos
	return x
}

func (x *XShip) Kind() Kind { return KindX }
func (x *XShip) Shape() []geom.Segment { return xShape }
func (x *XShip) Color() Color { return ColorBlue }
func (x *XShip) PointValue() int { return 25 }

// Accelerate treats dir as an axis index: 0 +x, 1 +y, 2 -x, 3 -y.
func (x *XShip) Accelerate(force, dir float64) {
	axisImpulse(&x.Body, force, int(dir), XMaxSpeed)
}

func (x *XShip) Update(w *World) {
	x.Accelerate(XForce, float64(w.Rand.IntN(4)))
	x.Pos = x.Pos.Add(x.Vel)
	ClampInto(x, w.Arena)
}
