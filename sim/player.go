package sim

import (
	"math"

	"github.com/knmorgan/nova/geom"
)

const (
	PlayerThrust   = 1.0
	PlayerDamping  = 0.90
	FireDelayTicks = 3
	MuzzleRadius   = 25.0
	muzzleSpread   = math.Pi / 8
)

// Thrust is a bitmask of held direction keys.
type Thrust uint8

const (
	ThrustUp Thrust = 1 << iota
	ThrustDown
	ThrustLeft
	ThrustRight
)

// Input is the player's control state for one step. Bearing is the absolute
// direction the ship should face, in radians.
type Input struct {
	Bearing float64
	Fire    bool
	Thrust  Thrust
}

var playerShape = concat(
	geom.Polygon(true, geom.Vec{X: 0, Y: -10}, geom.Vec{X: 5, Y: 0}, geom.Vec{X: 0, Y: 10}, geom.Vec{X: -5, Y: 0}),
	geom.Polygon(true, geom.Vec{X: -8, Y: -25}, geom.Vec{X: -8, Y: 0}, geom.Vec{X: -3, Y: 12}, geom.Vec{X: -14, Y: 0}),
	geom.Polygon(true, geom.Vec{X: 8, Y: -25}, geom.Vec{X: 8, Y: 0}, geom.Vec{X: 3, Y: 12}, geom.Vec{X: 14, Y: 0}),
)

// Player is the ship steered by Input.
type Player struct {
	Body

	in     Input
	fireCD int
	side   float64
}

func NewPlayer(pos geom.Vec) *Player {
	p := &Player{side: 1}
	p.Pos = pos
	p.Rotation = math.Pi / 2
	return p
}

func (p *Player) Kind() Kind { return KindPlayer }
func (p *Player) Shape() []geom.Segment { return playerShape }
func (p *Player) Color() Color { return ColorWhite }
func (p *Player) PointValue() int { return 0 }

func (p *Player) Accelerate(force, dir float64) {
	pushAlong(&p.Body, force, dir)
}

// Bearing returns the direction the nose points at.
func (p *Player) Bearing() float64 { return p.Rotation - math.Pi/2 }

// ApplyInput latches in for the next Update: thrust impulses are applied
// immediately and the ship turns to face the bearing.
func (p *Player) ApplyInput(in Input) {
	p.in = in
	if in.Thrust&ThrustUp != 0 {
		p.Accelerate(PlayerThrust, -math.Pi/2)
	}
	if in.Thrust&ThrustDown != 0 {
		p.Accelerate(PlayerThrust, math.Pi/2)
	}
	if in.Thrust&ThrustLeft != 0 {
		p.Accelerate(PlayerThrust, math.Pi)
	}
	if in.Thrust&ThrustRight != 0 {
		p.Accelerate(PlayerThrust, 0)
	}
	p.Rotation = in.Bearing + math.Pi/2
}

// Update damps, integrates and clamps the ship, then fires if the trigger is
// held and the cooldown has elapsed.
func (p *Player) Update(w *World) {
	p.Vel = p.Vel.Scale(PlayerDamping)
	p.Pos = p.Pos.Add(p.Vel)
	ClampInto(p, w.Arena)

	if p.fireCD > 0 {
		p.fireCD--
	}
	if p.in.Fire && p.fireCD == 0 {
		w.Bullets.Add(p.shoot())
		p.fireCD = FireDelayTicks
	}
}

func (p *Player) shoot() *Bullet {
	bearing := p.Bearing()
	muzzle := p.Pos.Add(geom.Polar(MuzzleRadius, bearing+p.side*muzzleSpread))
	p.side = -p.side
	return NewBullet(muzzle, bearing)
}

func (p *Player) reset(pos geom.Vec) {
	*p = Player{side: 1}
	p.Pos = pos
	p.Rotation = math.Pi / 2
}

func concat(parts ...[]geom.Segment) []geom.Segment {
	var out []geom.Segment
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
