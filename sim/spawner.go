package sim

import "github.com/knmorgan/nova/geom"

// FormationScore is the score above which enemies arrive in formations
// instead of one at a time.
const FormationScore = 15000

// Spawn periods in ticks once the score passes the last band.
const (
	singleFloor    = 15
	formationFloor = 38
)

type band struct {
	upTo  int
	ticks int
}

var singleBands = []band{
	{2000, 75},
	{5000, 50},
	{10000, 25},
}

var formationBands = []band{
	{25000, 250},
	{50000, 175},
	{125000, 125},
	{500000, 88},
	{1000000, 63},
}

// Spawner queues new enemies on a cadence that tightens as the score grows.
type Spawner struct {
	elapsed int
}

func NewSpawner() *Spawner { return &Spawner{} }

// Interval returns the spawn period in ticks for score.
func Interval(score int) int {
	if score <= FormationScore {
		return pick(singleBands, singleFloor, score)
	}
	return pick(formationBands, formationFloor, score)
}

func pick(bands []band, floor, score int) int {
	for _, b := range bands {
		if score <= b.upTo {
			return b.ticks
		}
	}
	return floor
}

// Step advances the timer and queues a wave on w when it expires. Returns the
// number of enemies queued.
func (s *Spawner) Step(w *World, score int) int {
	s.elapsed++
	if s.elapsed < Interval(score) {
		return 0
	}
	s.elapsed = 0

	before := w.Pending()
	if score <= FormationScore {
		s.single(w)
	} else {
		s.formation(w)
	}
	return w.Pending() - before
}

func (s *Spawner) reset() { s.elapsed = 0 }

func (s *Spawner) single(w *World) {
	pos := w.randomPoint(0)
	switch w.Rand.IntN(4) {
	case 0:
		w.Spawn(NewTriangle(pos, w.Rand))
	case 1:
		w.Spawn(NewDiamond(pos))
	case 2:
		w.Spawn(NewDart(pos, w.Player.Pos))
	default:
		w.Spawn(NewCarrier(pos))
	}
}

func (s *Spawner) formation(w *World) {
	wd, ht := w.Arena.Width(), w.Arena.Height()
	switch w.Rand.IntN(5) {
	case 0:
		for range 5 {
			w.Spawn(NewTriangle(w.randomPoint(0), w.Rand))
		}
	case 1:
		for _, p := range diamondFormation(w.Rand.IntN(6), wd, ht) {
			w.Spawn(NewDiamond(p))
		}
	case 2:
		for _, p := range dartFormation(w.Rand.IntN(6), wd, ht) {
			w.Spawn(NewDart(p, w.Player.Pos))
		}
	case 3:
		for _, p := range carrierFormation(w.Rand.IntN(2), wd, ht) {
			w.Spawn(NewCarrier(p))
		}
	default:
		w.Spawn(NewBlackHole(w.randomPoint(60)))
	}
}

func diamondFormation(n int, wd, ht float64) []geom.Vec {
	switch n {
	case 0:
		return corners(wd, ht, 125, 125)
	case 1:
		return midpoints(wd, ht, 125, 110)
	default:
		return edgeLine(n-2, wd, ht, 6, 35)
	}
}

func dartFormation(n int, wd, ht float64) []geom.Vec {
	switch n {
	case 0:
		return corners(wd, ht, 100, 100)
	case 1:
		return midpoints(wd, ht, 70, 70)
	default:
		return edgeLine(n-2, wd, ht, 5, 25)
	}
}

func carrierFormation(n int, wd, ht float64) []geom.Vec {
	if n == 0 {
		return midpoints(wd, ht, 35, 35)
	}
	return corners(wd, ht, 35, 35)
}

// corners returns the four points inset dx, dy from each corner.
func corners(wd, ht, dx, dy float64) []geom.Vec {
	return []geom.Vec{{X: dx, Y: dy}, {X: wd - dx, Y: dy}, {X: dx, Y: ht - dy}, {X: wd - dx, Y: ht - dy}}
}

// midpoints returns the four edge midpoints inset dx from the side walls and
// dy from the top and bottom.
func midpoints(wd, ht, dx, dy float64) []geom.Vec {
	return []geom.Vec{{X: wd / 2, Y: dy}, {X: wd / 2, Y: ht - dy}, {X: dx, Y: ht / 2}, {X: wd - dx, Y: ht / 2}}
}

// edgeLine spaces parts-1 points along one edge (0 top, 1 bottom, 2 left,
// 3 right), inset from the wall.
func edgeLine(edge int, wd, ht float64, parts int, inset float64) []geom.Vec {
	pts := make([]geom.Vec, 0, parts-1)
	for i := 1; i < parts; i++ {
		fx := wd / float64(parts) * float64(i)
		fy := ht / float64(parts) * float64(i)
		switch edge {
		case 0:
			pts = append(pts, geom.Vec{X: fx, Y: inset})
		case 1:
			pts = append(pts, geom.Vec{X: fx, Y: ht - inset})
		case 2:
			pts = append(pts, geom.Vec{X: inset, Y: fy})
		default:
			pts = append(pts, geom.Vec{X: wd - inset, Y: fy})
		}
	}
	return pts
}
