package sim

import "github.com/knmorgan/nova/geom"

// EventKind classifies what happened during a step.
type EventKind uint8

const (
	EventKilled     EventKind = iota + 1 // enemy shot, points credited
	EventDestroyed                       // enemy removed without score
	EventPlayerDied                      // a life was spent
	EventGameOver                        // no lives remain
)

func (k EventKind) String() string {
	switch k {
	case EventKilled:
		return "killed"
	case EventDestroyed:
		return "destroyed"
	case EventPlayerDied:
		return "player_died"
	case EventGameOver:
		return "game_over"
	}
	return "unknown"
}

// Event describes an entity leaving play. It carries the entity's last world
// edges so a renderer can break the silhouette into debris.
type Event struct {
	Kind   EventKind
	Tick   uint64
	Entity Kind
	Pos    geom.Vec
	Color  Color
	Edges  []geom.Segment
	Points int
}

func eventFor(kind EventKind, tick uint64, e Entity) Event {
	return Event{
		Kind:   kind,
		Tick:   tick,
		Entity: e.Kind(),
		Pos:    e.Base().Pos,
		Color:  e.Color(),
		Edges:  Edges(e),
	}
}
