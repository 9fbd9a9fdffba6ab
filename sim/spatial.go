package sim

import (
	"math"

	"github.com/kamstrup/intmap"

	"github.com/knmorgan/nova/geom"
	"github.com/knmorgan/nova/list"
)

// CellKey addresses one grid cell: floor(coord / cellSize) on each axis.
type CellKey struct {
	Col, Row int
}

func (k CellKey) pack() uint64 {
	return uint64(uint32(k.Col))<<32 | uint64(uint32(k.Row))
}

// Partition is a hashed uniform grid over the arena used for broad-phase
// collision. It holds references only and is rebuilt from scratch every tick.
type Partition struct {
	cellSize float64
	cols     int
	rows     int
	arena    geom.Rect

	cells   *intmap.Map[uint64, *list.List[Entity]]
	buckets []*list.List[Entity]
	keys    []CellKey
}

// NewPartition allocates every cell of a (ceil(w/cs)+1) x (ceil(h/cs)+1) grid.
// The key set never changes afterwards.
func NewPartition(width, height int, cellSize float64) *Partition {
	cols := int(math.Ceil(float64(width)/cellSize)) + 1
	rows := int(math.Ceil(float64(height)/cellSize)) + 1
	p := &Partition{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		arena:    geom.Box(float64(width), float64(height)),
		cells:    intmap.New[uint64, *list.List[Entity]](cols * rows),
		buckets:  make([]*list.List[Entity], 0, cols*rows),
		keys:     make([]CellKey, 0, 4),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			bucket := list.New[Entity](4)
			p.cells.Put(CellKey{col, row}.pack(), bucket)
			p.buckets = append(p.buckets, bucket)
		}
	}
	return p
}

// Dims returns the number of columns and rows.
func (p *Partition) Dims() (cols, rows int) { return p.cols, p.rows }

// KeyFor maps a world coordinate to its cell. Coordinates outside the grid
// are clamped onto its edge so every lookup lands on an allocated cell.
func (p *Partition) KeyFor(v geom.Vec) CellKey {
	col := int(math.Floor(v.X / p.cellSize))
	row := int(math.Floor(v.Y / p.cellSize))
	return CellKey{clampInt(col, 0, p.cols-1), clampInt(row, 0, p.rows-1)}
}

// Cell returns the bucket for k, or nil if k is outside the grid.
func (p *Partition) Cell(k CellKey) *list.List[Entity] {
	bucket, _ := p.cells.Get(k.pack())
	return bucket
}

// Rebuild clears every bucket and files each live enemy under the distinct
// cells holding the corners of its bounding box.
func (p *Partition) Rebuild(enemies *list.List[Entity]) {
	for _, bucket := range p.buckets {
		bucket.Clear()
	}
	for e := range enemies.All() {
		if e.Base().Done() {
			continue
		}
		for _, k := range p.cornerKeys(BoundsOf(e)) {
			p.Cell(k).Add(e)
		}
	}
}

// QueryPlayer tests the player against the enemies sharing its cells. The
// first collision flags the player and ends the query.
func (p *Partition) QueryPlayer(pl *Player) bool {
	for _, k := range p.cornerKeys(BoundsOf(pl)) {
		for e := range p.Cell(k).All() {
			if Collides(pl, e) {
				pl.Kill(CauseCollision)
				return true
			}
		}
	}
	return false
}

// QueryBullets drops bullets that left the arena and tests the rest against
// the enemies in the cells of their previous and current positions. A bullet
// strikes at most one enemy and is consumed by it. Returns the number of
// bullets that struck.
func (p *Partition) QueryBullets(bullets *list.List[*Bullet]) int {
	hits := 0
	bullets.StartOver()
	for bullets.HasNext() {
		b := bullets.Next()
		if !b.InBounds(p.arena) {
			bullets.Remove()
			continue
		}
		if p.strike(b) {
			bullets.Remove()
			hits++
		}
	}
	return hits
}

func (p *Partition) strike(b *Bullet) bool {
	p.keys = p.keys[:0]
	p.keys = appendKey(p.keys, p.KeyFor(b.Prev))
	p.keys = appendKey(p.keys, p.KeyFor(b.Pos))
	for _, k := range p.keys {
		for e := range p.Cell(k).All() {
			if b.Hits(e) {
				e.Base().Kill(CauseShot)
				return true
			}
		}
	}
	return false
}

// cornerKeys returns the distinct cells of box's four corners. The result
// aliases scratch space and is only valid until the next call.
func (p *Partition) cornerKeys(box geom.Rect) []CellKey {
	p.keys = p.keys[:0]
	for _, c := range box.Corners() {
		p.keys = appendKey(p.keys, p.KeyFor(c))
	}
	return p.keys
}

func appendKey(keys []CellKey, k CellKey) []CellKey {
	for _, have := range keys {
		if have == k {
			return keys
		}
	}
	return append(keys, k)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
