package sim

import (
	"math"

	"github.com/knmorgan/nova/geom"
)

// Gravity is the black hole's pull constant. The player feels Gravity/d and
// projectiles 3*Gravity/d, where d is the distance to the hole.
const Gravity = 75.0

var blackHoleShape = spiral(
	[]float64{0, 4, 4, -8, -8, 12, 12, -16, -16, 20, 20, -24, -24, 24},
	[]float64{0, 0, 8, 8, -8, -8, 16, 16, -16, -16, 24, 24, -24, -24},
)

// BlackHole is stationary and bends everything that moves toward itself.
type BlackHole struct {
	Body
}

func NewBlackHole(pos geom.Vec) *BlackHole {
	h := &BlackHole{}
	h.Pos = pos
	return h
}

func (h *BlackHole) Kind() Kind { return KindBlackHole }
func (h *BlackHole) Shape() []geom.Segment { return blackHoleShape }
func (h *BlackHole) Color() Color { return ColorRed }
func (h *BlackHole) PointValue() int { return 500 }

// Accelerate is a no-op; nothing moves a black hole.
func (h *BlackHole) Accelerate(force, dir float64) {}

func (h *BlackHole) Update(w *World) {
	if f, dir, ok := h.pull(w.Player.Pos, Gravity); ok {
		w.Player.Accelerate(f, dir)
	}
	for b := range w.Bullets.All() {
		if f, dir, ok := h.pull(b.Pos, 3*Gravity); ok {
			b.Accelerate(f, dir)
		}
	}
	h.Rotation += math.Pi / 64
}

// pull returns the force and direction drawing a body at p toward the hole.
func (h *BlackHole) pull(p geom.Vec, g float64) (float64, float64, bool) {
	d := h.Pos.Sub(p)
	dist := d.Len()
	if dist < 1 {
		return 0, 0, false
	}
	return g / dist, d.Angle(), true
}

// spiral joins consecutive points into an open polyline.
func spiral(xs, ys []float64) []geom.Segment {
	pts := make([]geom.Vec, len(xs))
	for i := range xs {
		pts[i] = geom.Vec{X: xs[i], Y: ys[i]}
	}
	return geom.Polygon(false, pts...)
}
