package sim

import "github.com/knmorgan/nova/geom"

const BulletSpeed = 15.0

// Bullet is a projectile. Collision uses the segment swept since the last
// Update, so a fast bullet cannot tunnel through a thin ship.
type Bullet struct {
	Pos  geom.Vec
	Prev geom.Vec
	Vel  geom.Vec
}

func NewBullet(pos geom.Vec, angle float64) *Bullet {
	return &Bullet{Pos: pos, Prev: pos, Vel: geom.Polar(BulletSpeed, angle)}
}

func (b *Bullet) Accelerate(force, dir float64) {
	b.Vel = b.Vel.Add(geom.Polar(force, dir))
}

// Update snapshots the previous position and integrates.
func (b *Bullet) Update() {
	b.Prev = b.Pos
	b.Pos = b.Pos.Add(b.Vel)
}

// Path is the segment from the previous to the current position.
func (b *Bullet) Path() geom.Segment { return geom.Segment{A: b.Prev, B: b.Pos} }

// InBounds reports whether the bullet is strictly inside arena.
func (b *Bullet) InBounds(arena geom.Rect) bool { return arena.ContainsStrict(b.Pos) }

// Hits reports whether the swept path crosses any world edge of e.
func (b *Bullet) Hits(e Entity) bool {
	return geom.SegmentHits(b.Path(), Edges(e))
}
