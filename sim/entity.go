// Package sim is the arcade simulation core: entities, the collision grid,
// and the per-tick lifecycle that turns collisions into score and lives.
package sim

import "github.com/knmorgan/nova/geom"

// Kind identifies an entity variant on the wire and in events.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindBlackHole
	KindDiamond
	KindTriangle
	KindX
	KindCarrier
	KindDart
)

var kindNames = [...]string{"player", "blackhole", "diamond", "triangle", "x", "carrier", "dart"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Color is an opaque RGB triple for renderers.
type Color struct {
	R, G, B uint8
}

var (
	ColorWhite    = Color{255, 255, 255}
	ColorRed      = Color{255, 0, 0}
	ColorCyan     = Color{0, 255, 255}
	ColorGreen    = Color{0, 255, 0}
	ColorBlue     = Color{0, 0, 255}
	ColorDarkGray = Color{64, 64, 64}
	ColorOrange   = Color{255, 200, 0}
)

// Cause records why an entity was flagged for removal. None of the built-in
// ships retire themselves; CauseExpired is for entities added through
// Game.AddEnemy that finish on their own.
type Cause uint8

const (
	CauseNone      Cause = iota
	CauseShot            // struck by a projectile; scores
	CauseCollision       // touched the player
	CauseExpired         // the entity finished on its own
	CauseCleared         // swept away when the player died
)

// Body is the pose and liveness state shared by every entity.
type Body struct {
	Pos      geom.Vec
	Vel      geom.Vec
	Rotation float64
	cause    Cause
}

// Base returns b. Embedding Body gives every entity its Base method.
func (b *Body) Base() *Body { return b }

// Done reports whether the entity is flagged for removal.
func (b *Body) Done() bool { return b.cause != CauseNone }

// Cause returns why the entity was flagged, or CauseNone.
func (b *Body) Cause() Cause { return b.cause }

// Kill flags the entity for removal. The first cause wins.
func (b *Body) Kill(c Cause) {
	if b.cause == CauseNone {
		b.cause = c
	}
}

func (b *Body) revive() { b.cause = CauseNone }

// Entity is the contract every movable game object satisfies. Shape returns
// local-space edges; world-space geometry is always derived from it and the
// current pose through Edges.
type Entity interface {
	Base() *Body
	Kind() Kind
	Shape() []geom.Segment
	Color() Color
	PointValue() int
	Accelerate(force, dir float64)
	Update(w *World)
}

// Edges returns the entity's silhouette at its current pose.
func Edges(e Entity) []geom.Segment {
	b := e.Base()
	shape := e.Shape()
	return geom.TransformAll(make([]geom.Segment, 0, len(shape)), shape, b.Pos, b.Rotation)
}

// BoundsOf returns the axis-aligned box around the entity's silhouette.
func BoundsOf(e Entity) geom.Rect {
	return geom.Bounds(Edges(e))
}

// Collides reports whether any edge of a crosses any edge of b.
func Collides(a, b Entity) bool {
	return geom.AnyIntersect(Edges(a), Edges(b))
}

// ClampInto pushes e back inside arena and reports whether it had to.
func ClampInto(e Entity, arena geom.Rect) bool {
	b := e.Base()
	box := BoundsOf(e)
	moved := false

	if box.Max.X > arena.Max.X {
		b.Pos.X -= box.Max.X - arena.Max.X
		moved = true
	} else if box.Min.X < arena.Min.X {
		b.Pos.X += arena.Min.X - box.Min.X
		moved = true
	}

	if box.Max.Y > arena.Max.Y {
		b.Pos.Y -= box.Max.Y - arena.Max.Y
		moved = true
	} else if box.Min.Y < arena.Min.Y {
		b.Pos.Y += arena.Min.Y - box.Min.Y
		moved = true
	}
	return moved
}

// axisImpulse adds force along one of the four axes (0:+x 1:+y 2:-x 3:-y)
// and clamps each velocity component to ±limit.
func axisImpulse(b *Body, force float64, axis int, limit float64) {
	switch axis {
	case 0:
		b.Vel.X += force
	case 1:
		b.Vel.Y += force
	case 2:
		b.Vel.X -= force
	case 3:
		b.Vel.Y -= force
	}
	b.Vel.X = Clamp(b.Vel.X, -limit, limit)
	b.Vel.Y = Clamp(b.Vel.Y, -limit, limit)
}

// pushAlong adds a continuous impulse of the given force toward dir.
func pushAlong(b *Body, force, dir float64) {
	b.Vel = b.Vel.Add(geom.Polar(force, dir))
}
