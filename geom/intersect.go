package geom

import "math"

// Intersects reports whether segments a and b touch. The segments are solved
// parametrically; a zero determinant (parallel or collinear segments) always
// reports false, even when collinear segments overlap.
func Intersects(a, b Segment) bool {
	adx, ady := a.B.X-a.A.X, a.B.Y-a.A.Y
	bdx, bdy := b.B.X-b.A.X, b.B.Y-b.A.Y

	denom := bdy*adx - bdx*ady
	if denom == 0 {
		return false
	}

	ox, oy := a.A.X-b.A.X, a.A.Y-b.A.Y
	t1 := (bdx*oy - bdy*ox) / denom
	t2 := (adx*oy - ady*ox) / denom

	return t1 >= 0 && t1 <= 1 && t2 >= 0 && t2 <= 1
}

// AnyIntersect reports whether any edge of as crosses any edge of bs.
func AnyIntersect(as, bs []Segment) bool {
	for _, a := range as {
		for _, b := range bs {
			if Intersects(a, b) {
				return true
			}
		}
	}
	return false
}

// SegmentHits reports whether s crosses any of edges.
func SegmentHits(s Segment, edges []Segment) bool {
	for _, e := range edges {
		if Intersects(s, e) {
			return true
		}
	}
	return false
}

// Transform rotates s about the origin by rot radians, then translates it by pos.
func Transform(s Segment, pos Vec, rot float64) Segment {
	sin, cos := math.Sincos(rot)
	return Segment{
		A: Vec{pos.X + s.A.X*cos - s.A.Y*sin, pos.Y + s.A.X*sin + s.A.Y*cos},
		B: Vec{pos.X + s.B.X*cos - s.B.Y*sin, pos.Y + s.B.X*sin + s.B.Y*cos},
	}
}

// TransformAll appends the transformed copy of every edge in src to dst.
func TransformAll(dst, src []Segment, pos Vec, rot float64) []Segment {
	for _, s := range src {
		dst = append(dst, Transform(s, pos, rot))
	}
	return dst
}

// Bounds returns the smallest axis-aligned box holding every endpoint.
// An empty edge list yields the zero Rect.
func Bounds(edges []Segment) Rect {
	if len(edges) == 0 {
		return Rect{}
	}
	r := Rect{Min: edges[0].A, Max: edges[0].A}
	for _, e := range edges {
		for _, p := range [2]Vec{e.A, e.B} {
			r.Min.X = math.Min(r.Min.X, p.X)
			r.Min.Y = math.Min(r.Min.Y, p.Y)
			r.Max.X = math.Max(r.Max.X, p.X)
			r.Max.Y = math.Max(r.Max.Y, p.Y)
		}
	}
	return r
}
