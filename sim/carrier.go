package sim

import "github.com/knmorgan/nova/geom"

const (
	CarrierForce      = 0.5
	CarrierMaxSpeed   = 2.0
	CarrierSpawnTicks = 250
	CarrierMaxBrood   = 15
)

var carrierShape = geom.Polygon(true,
	geom.Vec{X: -10, Y: -10},
	geom.Vec{X: -10, Y: 10},
	geom.Vec{X: 10, Y: 10},
	geom.Vec{X: 10, Y: -10},
)

// CarrierShip wanders until its launch timer fires, then releases a brood of
// XShips and holds station until a wall pushes it.
type CarrierShip struct {
	Body

	timer    int
	spawning bool
}

func NewCarrier(pos geom.Vec) *CarrierShip {
	c := &CarrierShip{}
	c.Pos = pos
	return c
}

func (c *CarrierShip) Kind() Kind { return KindCarrier }
func (c *CarrierShip) Shape() []geom.Segment { return carrierShape }
func (c *CarrierShip) Color() Color { return ColorDarkGray }
func (c *CarrierShip) PointValue() int { return 300 }

// Accelerate treats dir as an axis index like XShip.
func (c *CarrierShip) Accelerate(force, dir float64) {
	axisImpulse(&c.Body, force, int(dir), CarrierMaxSpeed)
}

// Holding reports whether the carrier is stationary after a launch.
func (c *CarrierShip) Holding() bool { return c.spawning }

func (c *CarrierShip) Update(w *World) {
	if !c.spawning {
		c.Accelerate(CarrierForce, float64(w.Rand.IntN(4)))
		c.Pos = c.Pos.Add(c.Vel)
	}
	if ClampInto(c, w.Arena) {
		c.spawning = false
	}

	c.timer++
	if c.timer == CarrierSpawnTicks {
		c.timer = 0
		c.launch(w)
	}
}

func (c *CarrierShip) launch(w *World) {
	c.spawning = true
	n := 1 + w.Rand.IntN(CarrierMaxBrood)
	for range n {
		w.Spawn(NewX(c.Pos))
	}
}
