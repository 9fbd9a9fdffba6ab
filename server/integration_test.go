package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/knmorgan/nova/sim"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func testOptions() SessionOptions {
	cfg := sim.DefaultConfig()
	cfg.Seed = 1
	cfg.Waves = false
	return SessionOptions{
		Sim:            cfg,
		TickEvery:      10 * time.Millisecond,
		BroadcastEvery: 2,
		MaxSessions:    10,
	}
}

// startTestServer spins up an httptest.Server backed by a temporary run
// journal and returns the server, its WebSocket URL, the hub, and a
// cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, *Hub, func()) {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	log := logger.WithField("test", t.Name())

	db, err := OpenDB(filepath.Join(t.TempDir(), "nova.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	journal := NewJournal(db, log)
	auth := NewAuth("test-secret", time.Hour, db, log)

	ctx, cancel := context.WithCancel(context.Background())
	sessions := NewSessionManager(ctx, testOptions(), db, journal, log)
	hub := NewHub(sessions, auth, db, HubOptions{
		PublicURL:     "http://nova.test",
		MaxConnsPerIP: 3,
		MaxConns:      100,
	}, log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	srv := httptest.NewServer(SetupRoutes(hub))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	// Same order as main: sessions say goodbye before the hub hangs up.
	var once sync.Once
	return srv, wsURL, hub, func() {
		once.Do(func() {
			cancel()
			sessions.Wait()
			stopHub()
			<-hub.Done()
			srv.Close()
			journal.Stop()
			db.Close()
		})
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads the next JSON message, skipping state frames.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	}
}

// readState reads the next msgpack state frame, skipping JSON messages.
func readState(t *testing.T, conn *websocket.Conn) StateFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var st StateFrame
		if err := msgpack.Unmarshal(raw, &st); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return st
	}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createSession creates a session and returns its ID and pilot token.
func createSession(t *testing.T, conn *websocket.Conn, name string) (string, string) {
	t.Helper()
	sendMsg(t, conn, MsgCreate, map[string]string{"name": name})
	created := readEnvelope(t, conn)
	if created.T != MsgCreated {
		t.Fatalf("expected created, got %s (%v)", created.T, created.Data)
	}
	m := dataMap(t, created)
	return m["sid"].(string), m["token"].(string)
}

// createAndPilot creates a session and takes its controls.
func createAndPilot(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	sid, token := createSession(t, conn, name)
	sendMsg(t, conn, MsgPilot, map[string]string{"sid": sid, "token": token})
	joined := readEnvelope(t, conn)
	if joined.T != MsgJoined {
		t.Fatalf("expected joined, got %s (%v)", joined.T, joined.Data)
	}
	if dataMap(t, joined)["pilot"] != true {
		t.Fatal("expected to join as pilot")
	}
	return sid
}

func expectError(t *testing.T, conn *websocket.Conn, want error) {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.T != MsgError {
		t.Fatalf("expected error, got %s", env.T)
	}
	if got := dataMap(t, env)["msg"]; got != want.Error() {
		t.Fatalf("expected error %q, got %q", want.Error(), got)
	}
}

// ---------- Session lifecycle over the socket ----------

func TestCreateReturnsPilotToken(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgCreate, map[string]string{"name": "Alpha"})
	created := readEnvelope(t, c)
	if created.T != MsgCreated {
		t.Fatalf("expected created, got %s", created.T)
	}
	m := dataMap(t, created)
	sid, _ := m["sid"].(string)
	if !uuidRegex.MatchString(sid) {
		t.Errorf("session ID %q is not a valid UUID v4", sid)
	}
	if tok, _ := m["token"].(string); tok == "" {
		t.Error("expected a pilot token")
	}
	if m["watch"] != "http://nova.test/watch/"+sid {
		t.Errorf("unexpected watch URL %v", m["watch"])
	}
}

func TestPilotReceivesState(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndPilot(t, c, "Alpha")

	st := readState(t, c)
	if st.Lives != sim.DefaultLives {
		t.Errorf("expected %d lives, got %d", sim.DefaultLives, st.Lives)
	}
	if st.Player.Kind != uint8(sim.KindPlayer) {
		t.Errorf("expected player kind, got %d", st.Player.Kind)
	}
	if len(st.Player.Edges) == 0 || len(st.Player.Edges)%4 != 0 {
		t.Errorf("expected flattened player edges, got %d floats", len(st.Player.Edges))
	}
	if st.Player.X != sim.DefaultArenaWidth/2 || st.Player.Y != sim.DefaultArenaHeight/2 {
		t.Errorf("expected player at arena centre, got (%f, %f)", st.Player.X, st.Player.Y)
	}
}

func TestSpectatorJoins(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	pilot := dialWS(t, wsURL)
	defer pilot.Close()
	sid := createAndPilot(t, pilot, "Alpha")

	watcher := dialWS(t, wsURL)
	defer watcher.Close()
	sendMsg(t, watcher, MsgJoin, map[string]string{"sid": sid})
	joined := readEnvelope(t, watcher)
	if joined.T != MsgJoined {
		t.Fatalf("expected joined, got %s", joined.T)
	}
	m := dataMap(t, joined)
	if m["pilot"] != false {
		t.Error("spectator should not be pilot")
	}
	if m["w"] != float64(sim.DefaultArenaWidth) || m["h"] != float64(sim.DefaultArenaHeight) {
		t.Errorf("unexpected arena size %v x %v", m["w"], m["h"])
	}
	readState(t, watcher)

	// Spectators cannot steer
	sendMsg(t, watcher, MsgInput, InputMsg{Fire: true})
	expectError(t, watcher, ErrNotPilot)
}

func TestPilotRejectsBadToken(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sid, _ := createSession(t, c, "Alpha")
	_, otherToken := createSession(t, c, "Beta")

	sendMsg(t, c, MsgPilot, map[string]string{"sid": sid, "token": "garbage"})
	expectError(t, c, ErrInvalidToken)

	// A token for one session does not unlock another
	sendMsg(t, c, MsgPilot, map[string]string{"sid": sid, "token": otherToken})
	expectError(t, c, ErrInvalidToken)
}

func TestJoinNonExistentSession(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgJoin, map[string]string{"sid": "00000000-0000-4000-8000-000000000000"})
	expectError(t, c, ErrSessionNotFound)
}

func TestBinaryInputSteersShip(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndPilot(t, c, "Alpha")

	frame := encodeBinaryInput(sim.Input{Thrust: sim.ThrustRight})
	if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write WS: %v", err)
	}

	start := float64(sim.DefaultArenaWidth / 2)
	for i := 0; i < 100; i++ {
		st := readState(t, c)
		if st.Player.X > start+10 {
			return
		}
	}
	t.Fatal("ship did not move right under thrust")
}

func TestRestartDuringRunRejected(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgRestart, nil)
	expectError(t, c, ErrSessionNotFound)

	createAndPilot(t, c, "Alpha")
	sendMsg(t, c, MsgRestart, nil)
	expectError(t, c, ErrRunInProgress)
}

func TestListSessions(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndPilot(t, c, "Alpha")
	createSession(t, c, "Beta")

	sendMsg(t, c, MsgList, nil)
	env := readEnvelope(t, c)
	if env.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", env.T)
	}
	raw, _ := json.Marshal(env.Data)
	var list []SessionInfo
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	piloted := 0
	for _, s := range list {
		if s.Piloted {
			piloted++
		}
	}
	if piloted != 1 {
		t.Errorf("expected 1 piloted session, got %d", piloted)
	}
}

func TestLeaveWithoutJoining(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	// Should not crash
	sendMsg(t, c, MsgLeave, nil)

	sendMsg(t, c, MsgList, nil)
	env := readEnvelope(t, c)
	if env.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", env.T)
	}
}

func TestIdleSessionClosed(t *testing.T) {
	prev := SessionIdleTimeout
	SessionIdleTimeout = 50 * time.Millisecond
	defer func() { SessionIdleTimeout = prev }()

	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	sid := createAndPilot(t, c, "Temp")
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := hub.sessions.Get(sid); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session should be closed after its last client leaves")
}

// ---------- HTTP routes ----------

func TestQRRoute(t *testing.T) {
	srv, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid := createAndPilot(t, c, "Alpha")

	resp, err := http.Get(srv.URL + "/qr/" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Error("expected a PNG body")
	}

	resp2, err := http.Get(srv.URL + "/qr/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", resp2.StatusCode)
	}
}

func TestWatchRoute(t *testing.T) {
	srv, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid := createAndPilot(t, c, "Alpha")

	resp, err := http.Get(srv.URL + "/watch/" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var info SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ID != sid || info.Name != "Alpha" || !info.Piloted {
		t.Errorf("unexpected session info %+v", info)
	}
}

func TestRunsRoute(t *testing.T) {
	srv, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid := createAndPilot(t, c, "Alpha")

	sess, err := hub.sessions.Get(sid)
	if err != nil {
		t.Fatal(err)
	}
	runID := sess.RunID()
	if runID == 0 {
		t.Fatal("expected a journaled run")
	}

	resp, err := http.Get(srv.URL + "/runs/" + strconv.FormatInt(runID, 10))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sum RunSummary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.SessionID != sid {
		t.Errorf("expected run of %s, got %s", sid, sum.SessionID)
	}

	for path, want := range map[string]int{
		"/runs/999999": http.StatusNotFound,
		"/runs/abc":    http.StatusBadRequest,
	} {
		r, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		r.Body.Close()
		if r.StatusCode != want {
			t.Errorf("%s: expected %d, got %d", path, want, r.StatusCode)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createSession(t, c, "Alpha")

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var h map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h["sessions"] != 1 {
		t.Errorf("expected 1 session, got %d", h["sessions"])
	}
	if _, ok := h["clients"]; !ok {
		t.Error("expected a client count")
	}
}

func TestConnectionLimitPerIP(t *testing.T) {
	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		c := dialWS(t, wsURL)
		defer c.Close()
	}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the fourth connection to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", resp)
	}
	if n := hub.ConnCount(); n != 3 {
		t.Errorf("expected 3 open connections, got %d", n)
	}
}

func TestShutdownNotifiesClients(t *testing.T) {
	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	pilot := dialWS(t, wsURL)
	defer pilot.Close()
	sid := createAndPilot(t, pilot, "Closing")

	watcher := dialWS(t, wsURL)
	defer watcher.Close()
	sendMsg(t, watcher, MsgJoin, map[string]string{"sid": sid})
	if env := readEnvelope(t, watcher); env.T != MsgJoined {
		t.Fatalf("expected joined, got %s", env.T)
	}

	cleanup()

	for _, conn := range []*websocket.Conn{pilot, watcher} {
		expectError(t, conn, errors.New("server shutting down"))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			_, _, err := conn.ReadMessage()
			if err == nil {
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				t.Fatalf("expected a close frame, got %v", err)
			}
			break
		}
	}

	if n := hub.ClientCount(); n != 0 {
		t.Errorf("expected no registered clients after shutdown, got %d", n)
	}
}
