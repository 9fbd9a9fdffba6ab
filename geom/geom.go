// Package geom holds the 2D primitives the collision core is built on.
package geom

import "math"

// Vec is a point or displacement in world units.
type Vec struct {
	X, Y float64
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

func (v Vec) Scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }

// Len returns the Euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// Angle returns the direction of v in radians.
func (v Vec) Angle() float64 { return math.Atan2(v.Y, v.X) }

// Rotate turns v about the origin by rad radians.
func (v Vec) Rotate(rad float64) Vec {
	sin, cos := math.Sincos(rad)
	return Vec{v.X*cos - v.Y*sin, v.X*sin + v.Y*cos}
}

// Polar returns the vector of length r pointing along rad.
func Polar(r, rad float64) Vec {
	sin, cos := math.Sincos(rad)
	return Vec{r * cos, r * sin}
}

// Segment is a line segment between two endpoints.
type Segment struct {
	A, B Vec
}

// Seg builds a segment from raw coordinates.
func Seg(x1, y1, x2, y2 float64) Segment {
	return Segment{Vec{x1, y1}, Vec{x2, y2}}
}

// Polygon joins consecutive points into edges. When closed is set the last
// point is joined back to the first.
func Polygon(closed bool, pts ...Vec) []Segment {
	if len(pts) < 2 {
		return nil
	}
	n := len(pts) - 1
	if closed {
		n = len(pts)
	}
	edges := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		edges = append(edges, Segment{pts[i], pts[(i+1)%len(pts)]})
	}
	return edges
}

// Rect is an axis-aligned box.
type Rect struct {
	Min, Max Vec
}

// Box returns the rect spanning [0,w]x[0,h].
func Box(w, h float64) Rect {
	return Rect{Max: Vec{w, h}}
}

func (r Rect) Width() float64 { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Corners returns the four corners, top-left first, clockwise.
func (r Rect) Corners() [4]Vec {
	return [4]Vec{
		r.Min,
		{r.Max.X, r.Min.Y},
		r.Max,
		{r.Min.X, r.Max.Y},
	}
}

// ContainsStrict reports whether p lies strictly inside r.
func (r Rect) ContainsStrict(p Vec) bool {
	return p.X > r.Min.X && p.Y > r.Min.Y && p.X < r.Max.X && p.Y < r.Max.Y
}
