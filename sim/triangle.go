package sim

import (
	"math"
	"math/rand/v2"

	"github.com/knmorgan/nova/geom"
)

const (
	triangleMinRadius = 10
	triangleMaxRadius = 25
)

// TriangleShip drifts nowhere. Its three vertex radii breathe between 10 and
// 25 while it slowly spins.
type TriangleShip struct {
	Body

	radius [3]int
	step   [3]int
	shape  []geom.Segment
}

func NewTriangle(pos geom.Vec, rng *rand.Rand) *TriangleShip {
	t := &TriangleShip{}
	t.Pos = pos
	for i := range t.radius {
		t.radius[i] = triangleMinRadius + rng.IntN(triangleMaxRadius-triangleMinRadius)
		t.step[i] = 1
		if rng.IntN(2) == 0 {
			t.step[i] = -1
		}
	}
	t.shape = t.outline()
	return t
}

func (t *TriangleShip) Kind() Kind { return KindTriangle }
func (t *TriangleShip) Shape() []geom.Segment { return t.shape }
func (t *TriangleShip) Color() Color { return ColorGreen }
func (t *TriangleShip) PointValue() int { return 25 }

// Accelerate is a no-op.
func (t *TriangleShip) Accelerate(force, dir float64) {}

func (t *TriangleShip) Update(w *World) {
	for i := range t.radius {
		t.radius[i] += t.step[i]
		if t.radius[i] <= triangleMinRadius || t.radius[i] >= triangleMaxRadius {
			t.step[i] = -t.step[i]
		}
	}
	t.Rotation -= math.Pi / 128
	t.shape = t.outline()
}

// Radii returns the current vertex distances.
func (t *TriangleShip) Radii() [3]int { return t.radius }

func (t *TriangleShip) outline() []geom.Segment {
	r0, r1, r2 := float64(t.radius[0]), float64(t.radius[1]), float64(t.radius[2])
	return geom.Polygon(true,
		geom.Vec{X: 0, Y: r0},
		geom.Vec{X: .866 * r1, Y: -.5 * r1},
		geom.Vec{X: -.866 * r2, Y: -.5 * r2},
	)
}
