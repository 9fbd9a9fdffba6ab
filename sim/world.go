package sim

import (
	"math/rand/v2"

	"github.com/knmorgan/nova/geom"
	"github.com/knmorgan/nova/list"
)

// World is the context handed to every Update: the arena, the player, the
// live projectiles, randomness, and a queue for entities spawned mid-tick.
type World struct {
	Arena   geom.Rect
	Player  *Player
	Bullets *list.List[*Bullet]
	Rand    *rand.Rand

	pending []Entity
}

func newWorld(cfg Config) *World {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	arena := geom.Box(float64(cfg.Width), float64(cfg.Height))
	return &World{
		Arena:   arena,
		Player:  NewPlayer(geom.Vec{X: arena.Width() / 2, Y: arena.Height() / 2}),
		Bullets: list.New[*Bullet](64),
		Rand:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Spawn queues e. Queued entities join the enemy list at the start of the
// next step, so nothing spawned during a sweep is visited by that sweep.
func (w *World) Spawn(e Entity) {
	w.pending = append(w.pending, e)
}

// Pending returns the number of queued spawns.
func (w *World) Pending() int { return len(w.pending) }

func (w *World) flush(dst *list.List[Entity]) int {
	n := len(w.pending)
	for i, e := range w.pending {
		dst.Add(e)
		w.pending[i] = nil
	}
	w.pending = w.pending[:0]
	return n
}

// randomPoint returns a point inside the arena at least margin from every wall.
func (w *World) randomPoint(margin float64) geom.Vec {
	return geom.Vec{
		X: w.Arena.Min.X + margin + w.Rand.Float64()*(w.Arena.Width()-2*margin),
		Y: w.Arena.Min.Y + margin + w.Rand.Float64()*(w.Arena.Height()-2*margin),
	}
}
