package main

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/knmorgan/nova/sim"
)

// Client -> Server message types
const (
	MsgCreate  = "create"  // create session, returns a pilot token
	MsgJoin    = "join"    // spectate a session
	MsgPilot   = "pilot"   // take the controls with a pilot token
	MsgInput   = "input"   // JSON input (binary frames preferred)
	MsgRestart = "restart" // pilot only, after game over
	MsgList    = "list"    // list sessions
	MsgLeave   = "leave"
)

// Server -> Client message types
const (
	MsgCreated  = "created"
	MsgJoined   = "joined"
	MsgSessions = "sessions"
	MsgEvent    = "event"
	MsgError    = "error"
)

// Binary input frame: [0x01, bearing_hi, bearing_lo, flags]. Bearing is an
// int16 in units of 1/10000 rad.
const (
	binaryInputTag = 0x01
	binaryInputLen = 4
	bearingScale   = 10000.0

	flagFire  = 0x01
	flagUp    = 0x02
	flagDown  = 0x04
	flagLeft  = 0x08
	flagRight = 0x10
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// InputMsg is the JSON form of a control update.
type InputMsg struct {
	Bearing float64 `json:"b"`
	Fire    bool    `json:"f"`
	Up      bool    `json:"u,omitempty"`
	Down    bool    `json:"dn,omitempty"`
	Left    bool    `json:"l,omitempty"`
	Right   bool    `json:"r,omitempty"`
}

// ToInput converts the message to core input.
func (m InputMsg) ToInput() sim.Input {
	in := sim.Input{Bearing: m.Bearing, Fire: m.Fire}
	if m.Up {
		in.Thrust |= sim.ThrustUp
	}
	if m.Down {
		in.Thrust |= sim.ThrustDown
	}
	if m.Left {
		in.Thrust |= sim.ThrustLeft
	}
	if m.Right {
		in.Thrust |= sim.ThrustRight
	}
	return in
}

// CreateMsg is sent when a client wants a new session
type CreateMsg struct {
	Name string `json:"name"`
}

// JoinMsg is sent to spectate a session
type JoinMsg struct {
	SessionID string `json:"sid"`
}

// PilotMsg attaches the sender as the session's pilot
type PilotMsg struct {
	SessionID string `json:"sid"`
	Token     string `json:"token"`
}

// CreatedMsg answers a create with the pilot token and a shareable link
type CreatedMsg struct {
	SessionID string `json:"sid"`
	Token     string `json:"token"`
	WatchURL  string `json:"watch"`
}

// JoinedMsg confirms a join or pilot request
type JoinedMsg struct {
	SessionID string `json:"sid"`
	Name      string `json:"name"`
	Pilot     bool   `json:"pilot"`
	Width     int    `json:"w"`
	Height    int    `json:"h"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Spectators int    `json:"spectators"`
	Piloted    bool   `json:"piloted"`
	Score      int    `json:"score"`
	Over       bool   `json:"over"`
}

// EventMsg reports a kill, a lost life, or the end of a run
type EventMsg struct {
	Kind   string  `json:"k"`
	Tick   uint64  `json:"tick"`
	Entity string  `json:"e"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Points int     `json:"pts,omitempty"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

func eventMsg(ev sim.Event) EventMsg {
	return EventMsg{
		Kind:   ev.Kind.String(),
		Tick:   ev.Tick,
		Entity: ev.Entity.String(),
		X:      ev.Pos.X,
		Y:      ev.Pos.Y,
		Points: ev.Points,
	}
}

// ShipFrame is one ship in a state frame. Edges holds the world-space
// silhouette flattened as x1,y1,x2,y2 per segment.
type ShipFrame struct {
	Kind  uint8     `msgpack:"k"`
	X     float64   `msgpack:"x"`
	Y     float64   `msgpack:"y"`
	R     float64   `msgpack:"r"`
	Color [3]uint8  `msgpack:"c"`
	Edges []float32 `msgpack:"g"`
}

// BulletFrame is one projectile in a state frame
type BulletFrame struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// StateFrame is the binary state broadcast
type StateFrame struct {
	Tick    uint64        `msgpack:"t"`
	Score   int           `msgpack:"s"`
	Lives   int           `msgpack:"l"`
	Mult    int           `msgpack:"m"`
	Over    bool          `msgpack:"o"`
	Player  ShipFrame     `msgpack:"p"`
	Enemies []ShipFrame   `msgpack:"e"`
	Bullets []BulletFrame `msgpack:"b"`
}

func shipFrame(e sim.Entity) ShipFrame {
	b := e.Base()
	c := e.Color()
	edges := sim.Edges(e)
	flat := make([]float32, 0, len(edges)*4)
	for _, s := range edges {
		flat = append(flat, float32(s.A.X), float32(s.A.Y), float32(s.B.X), float32(s.B.Y))
	}
	return ShipFrame{
		Kind:  uint8(e.Kind()),
		X:     b.Pos.X,
		Y:     b.Pos.Y,
		R:     b.Rotation,
		Color: [3]uint8{c.R, c.G, c.B},
		Edges: flat,
	}
}

// BuildState snapshots g into a frame.
func BuildState(g *sim.Game) StateFrame {
	state := StateFrame{
		Tick:    g.Tick(),
		Score:   g.Score(),
		Lives:   g.Lives(),
		Mult:    g.Multiplier(),
		Over:    g.GameOver(),
		Player:  shipFrame(g.Player()),
		Enemies: make([]ShipFrame, 0, g.EnemyCount()),
	}
	for e := range g.Enemies() {
		state.Enemies = append(state.Enemies, shipFrame(e))
	}
	for b := range g.Bullets() {
		state.Bullets = append(state.Bullets, BulletFrame{X: b.Pos.X, Y: b.Pos.Y})
	}
	return state
}

// EncodeState msgpack-encodes the current state of g.
func EncodeState(g *sim.Game) ([]byte, error) {
	return msgpack.Marshal(BuildState(g))
}

// decodeBinaryInput parses a compact binary input frame.
func decodeBinaryInput(msg []byte) (sim.Input, bool) {
	if len(msg) != binaryInputLen || msg[0] != binaryInputTag {
		return sim.Input{}, false
	}
	bearing := float64(int16(uint16(msg[1])<<8|uint16(msg[2]))) / bearingScale
	flags := msg[3]
	return InputMsg{
		Bearing: bearing,
		Fire:    flags&flagFire != 0,
		Up:      flags&flagUp != 0,
		Down:    flags&flagDown != 0,
		Left:    flags&flagLeft != 0,
		Right:   flags&flagRight != 0,
	}.ToInput(), true
}
