package sim

import (
	"io"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/knmorgan/nova/geom"
	"github.com/knmorgan/nova/list"
)

// Option configures a Game.
type Option func(*Game)

// WithLogger routes lifecycle logging to log.
func WithLogger(log *logrus.Entry) Option {
	return func(g *Game) { g.log = log }
}

// Game runs one play-through: the world, the enemy population, the grid and
// the scoring state. It is not safe for concurrent use; the caller owns the
// fixed-step loop and calls Step once per tick.
type Game struct {
	cfg     Config
	world   *World
	grid    *Partition
	spawner *Spawner
	enemies *list.List[Entity]

	score  int
	lives  int
	streak int
	mult   int
	over   bool
	tick   uint64

	events []Event
	log    *logrus.Entry
}

func NewGame(cfg Config, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Game{
		cfg:     cfg,
		world:   newWorld(cfg),
		grid:    NewPartition(cfg.Width, cfg.Height, cfg.CellSize),
		enemies: list.New[Entity](128),
	}
	if cfg.Waves {
		g.spawner = NewSpawner()
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		g.log = logrus.NewEntry(quiet)
	}
	g.reset()
	return g, nil
}

func (g *Game) reset() {
	g.score = 0
	g.lives = g.cfg.Lives
	g.streak = 0
	g.mult = 1
	g.over = false
	g.tick = 0
	g.events = nil
	g.enemies.Clear()
	g.world.Bullets.Clear()
	g.world.pending = g.world.pending[:0]
	g.world.Player.reset(geom.Vec{X: g.world.Arena.Width() / 2, Y: g.world.Arena.Height() / 2})
	if g.spawner != nil {
		g.spawner.reset()
	}
}

// Restart returns the game to its initial state.
func (g *Game) Restart() {
	g.reset()
	g.log.Debug("game restarted")
}

// AddEnemy queues e to join play at the start of the next step.
func (g *Game) AddEnemy(e Entity) { g.world.Spawn(e) }

// Step advances the simulation one tick and returns what happened. Removals
// lag by one tick: a ship struck now is credited on the next Step, and a
// player flagged now loses the life on the next Step. Step on a finished game
// is a no-op.
func (g *Game) Step(in Input) []Event {
	if g.over {
		return nil
	}
	g.events = nil
	g.tick++
	g.world.flush(g.enemies)

	pl := g.world.Player
	if pl.Done() {
		g.killPlayer()
		if g.over {
			return g.events
		}
	}
	pl.ApplyInput(in)
	pl.Update(g.world)

	g.sweep()
	for b := range g.world.Bullets.All() {
		b.Update()
	}

	g.grid.Rebuild(g.enemies)
	g.grid.QueryPlayer(pl)
	g.grid.QueryBullets(g.world.Bullets)

	if g.spawner != nil {
		g.spawner.Step(g.world, g.score)
	}
	return g.events
}

// sweep removes flagged enemies and updates the rest.
func (g *Game) sweep() {
	g.enemies.StartOver()
	for g.enemies.HasNext() {
		e := g.enemies.Next()
		b := e.Base()
		if !b.Done() {
			e.Update(g.world)
			continue
		}
		g.enemies.Remove()
		if b.Cause() == CauseShot {
			g.credit(e)
		} else {
			g.events = append(g.events, eventFor(EventDestroyed, g.tick, e))
		}
	}
}

func (g *Game) credit(e Entity) {
	points := e.PointValue() * g.mult
	g.score += points
	g.streak++
	g.mult = min(MaxMultiplier, g.streak/KillsPerTier+1)

	ev := eventFor(EventKilled, g.tick, e)
	ev.Points = points
	g.events = append(g.events, ev)
}

func (g *Game) killPlayer() {
	pl := g.world.Player
	g.lives--
	g.streak = 0
	g.mult = 1
	g.over = g.lives < 0
	g.events = append(g.events, eventFor(EventPlayerDied, g.tick, pl))

	for e := range g.enemies.All() {
		e.Base().Kill(CauseCleared)
		g.events = append(g.events, eventFor(EventDestroyed, g.tick, e))
	}
	g.enemies.Clear()
	pl.revive()

	entry := g.log.WithFields(logrus.Fields{
		"tick":  g.tick,
		"lives": g.lives,
		"score": g.score,
	})
	if g.over {
		g.events = append(g.events, Event{Kind: EventGameOver, Tick: g.tick, Entity: KindPlayer, Pos: pl.Pos, Points: g.score})
		entry.Info("game over")
		return
	}
	entry.Debug("player died")
}

func (g *Game) Score() int { return g.score }
func (g *Game) Lives() int { return g.lives }
func (g *Game) Multiplier() int { return g.mult }
func (g *Game) Streak() int { return g.streak }
func (g *Game) GameOver() bool { return g.over }
func (g *Game) Tick() uint64 { return g.tick }
func (g *Game) Config() Config { return g.cfg }

// Arena returns the playfield rectangle.
func (g *Game) Arena() geom.Rect { return g.world.Arena }

// Player exposes the player ship. Callers must not mutate it.
func (g *Game) Player() *Player { return g.world.Player }

// Enemies yields the live enemy population in list order.
func (g *Game) Enemies() iter.Seq[Entity] { return g.enemies.All() }

// EnemyCount returns the number of enemies in play, excluding queued spawns.
func (g *Game) EnemyCount() int { return g.enemies.Len() }

// Bullets yields the live projectiles.
func (g *Game) Bullets() iter.Seq[*Bullet] { return g.world.Bullets.All() }

// Grid exposes the partition built during the last step.
func (g *Game) Grid() *Partition { return g.grid }
