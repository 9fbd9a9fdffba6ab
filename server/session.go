package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/knmorgan/nova/sim"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
	ErrNotPilot        = errors.New("only the pilot can do that")
	ErrRunInProgress   = errors.New("run still in progress")
)

// SessionIdleTimeout is how long a session with no clients keeps ticking.
var SessionIdleTimeout = 2 * time.Minute

const maxSessionName = 30

// SessionOptions are the per-session settings derived from Config
type SessionOptions struct {
	Sim            sim.Config
	TickEvery      time.Duration
	BroadcastEvery int
	MaxSessions    int
}

// Session owns one game and the clients watching or flying it. Exactly one
// goroutine (Run) steps the game; everything else goes through mu.
type Session struct {
	ID   string
	Name string

	mu        sync.Mutex
	game      *sim.Game
	input     sim.Input
	clients   map[*Client]bool
	pilot     *Client
	idleSince time.Time
	sentTick  uint64
	closed    bool

	runID    int64
	runDone  bool
	deaths   int
	db       *DB
	journal  *Journal
	opts     SessionOptions
	log      *logrus.Entry
	finished chan struct{}
}

func newSession(name string, opts SessionOptions, db *DB, journal *Journal, log *logrus.Entry) (*Session, error) {
	id := uuid.NewString()
	entry := log.WithField("session", id)
	game, err := sim.NewGame(opts.Sim, sim.WithLogger(entry))
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        id,
		Name:      name,
		game:      game,
		clients:   make(map[*Client]bool),
		idleSince: time.Now(),
		db:        db,
		journal:   journal,
		opts:      opts,
		log:       entry,
		finished:  make(chan struct{}),
	}
	s.startRun()
	return s, nil
}

// Run steps the game at the configured rate until ctx is cancelled or the
// session has been empty for SessionIdleTimeout.
func (s *Session) Run(ctx context.Context) {
	defer close(s.finished)
	ticker := time.NewTicker(s.opts.TickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.close("server shutting down")
			return
		case <-ticker.C:
			if idle := s.tick(); idle {
				s.log.Info("session idle, closing")
				s.close("session idle")
				return
			}
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.finished }

// tick steps the game once and fans the results out. Reports whether the
// session has been idle long enough to close.
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 && time.Since(s.idleSince) > SessionIdleTimeout {
		return true
	}

	wasOver := s.game.GameOver()
	events := s.game.Step(s.input)
	for _, ev := range events {
		if s.journal != nil && s.runID != 0 {
			s.journal.Track(s.runID, ev)
		}
		switch ev.Kind {
		case sim.EventDestroyed:
			continue
		case sim.EventPlayerDied:
			s.deaths++
		}
		s.broadcastJSON(Envelope{T: MsgEvent, Data: eventMsg(ev)})
	}
	if !wasOver && s.game.GameOver() {
		s.finishRun()
	}

	tick := s.game.Tick()
	if tick != s.sentTick && (tick%uint64(s.opts.BroadcastEvery) == 0 || s.game.GameOver()) {
		s.sentTick = tick
		s.broadcastState()
	}
	return false
}

func (s *Session) broadcastState() {
	if len(s.clients) == 0 {
		return
	}
	data, err := EncodeState(s.game)
	if err != nil {
		s.log.WithError(err).Error("encode state")
		return
	}
	for c := range s.clients {
		c.SendBinary(data)
	}
}

func (s *Session) broadcastJSON(msg Envelope) {
	for c := range s.clients {
		c.SendJSON(msg)
	}
}

// Attach adds c to the session, as pilot if asked.
func (s *Session) Attach(c *Client, pilot bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionNotFound
	}
	s.clients[c] = true
	if pilot {
		if s.pilot != nil && s.pilot != c {
			s.log.Info("pilot replaced")
		}
		s.pilot = c
		s.input = sim.Input{}
	}
	return nil
}

// SendSnapshot queues the current state frame for c alone, so a newcomer
// sees the arena before the next broadcast.
func (s *Session) SendSnapshot(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := EncodeState(s.game)
	if err != nil {
		s.log.WithError(err).Error("encode state")
		return
	}
	c.SendBinary(data)
}

// Detach removes c. A departing pilot leaves the ship coasting.
func (s *Session) Detach(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	if s.pilot == c {
		s.pilot = nil
		s.input = sim.Input{}
	}
	if len(s.clients) == 0 {
		s.idleSince = time.Now()
	}
}

// SetInput replaces the held controls. Only the pilot may steer.
func (s *Session) SetInput(c *Client, in sim.Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pilot != c {
		return ErrNotPilot
	}
	s.input = in
	return nil
}

// Restart begins a new run once the current one is over.
func (s *Session) Restart(c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pilot != c {
		return ErrNotPilot
	}
	if !s.game.GameOver() {
		return ErrRunInProgress
	}
	s.finishRun()
	s.game.Restart()
	s.input = sim.Input{}
	s.sentTick = 0
	s.startRun()
	return nil
}

// IsPilot reports whether c holds the controls.
func (s *Session) IsPilot(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pilot == c
}

// RunID returns the journal ID of the current run, or 0 without a database.
func (s *Session) RunID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Info summarises the session for listings.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.ID,
		Name:       s.Name,
		Spectators: len(s.clients),
		Piloted:    s.pilot != nil,
		Score:      s.game.Score(),
		Over:       s.game.GameOver(),
	}
}

func (s *Session) close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.finishRun()
	for c := range s.clients {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: reason}})
		delete(s.clients, c)
	}
	s.pilot = nil
}

// startRun opens a journal entry for the current run. Caller holds mu.
func (s *Session) startRun() {
	s.runID, s.runDone, s.deaths = 0, false, 0
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	id, err := s.db.StartRun(ctx, s.ID, time.Now())
	if err != nil {
		s.log.WithError(err).Error("start run")
		return
	}
	s.runID = id
	s.log.WithField("run", id).Debug("run started")
}

// finishRun closes the journal entry once. Caller holds mu.
func (s *Session) finishRun() {
	if s.runDone || s.db == nil || s.runID == 0 {
		return
	}
	s.runDone = true
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	err := s.db.FinishRun(ctx, s.runID, time.Now(), s.game.Score(), s.game.Tick(), s.deaths)
	if err != nil {
		s.log.WithError(err).Error("finish run")
		return
	}
	s.log.WithFields(logrus.Fields{
		"run":   s.runID,
		"score": s.game.Score(),
		"ticks": s.game.Tick(),
	}).Info("run finished")
}

// SessionManager handles creation and lookup of sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     SessionOptions
	db       *DB
	journal  *Journal
	log      *logrus.Entry
	ctx      context.Context
	wg       sync.WaitGroup
}

// NewSessionManager creates a manager whose sessions stop when ctx ends.
// db and journal may be nil to run without persistence.
func NewSessionManager(ctx context.Context, opts SessionOptions, db *DB, journal *Journal, log *logrus.Entry) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		opts:     opts,
		db:       db,
		journal:  journal,
		log:      log,
		ctx:      ctx,
	}
}

// Create starts a new session
func (sm *SessionManager) Create(name string) (*Session, error) {
	if name == "" {
		name = "Nova"
	}
	if len(name) > maxSessionName {
		name = name[:maxSessionName]
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.sessions) >= sm.opts.MaxSessions {
		return nil, ErrTooManySessions
	}

	sess, err := newSession(name, sm.opts, sm.db, sm.journal, sm.log)
	if err != nil {
		return nil, err
	}
	sm.sessions[sess.ID] = sess

	ctx, cancel := context.WithCancel(sm.ctx)
	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		defer cancel()
		sess.Run(ctx)
		sm.remove(sess.ID)
	}()
	sess.log.WithField("name", name).Info("session created")
	return sess, nil
}

// Get returns a session by ID
func (sm *SessionManager) Get(id string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (sm *SessionManager) remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// List returns info about all active sessions
func (sm *SessionManager) List() []SessionInfo {
	sm.mu.RLock()
	all := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		all = append(all, sess)
	}
	sm.mu.RUnlock()

	list := make([]SessionInfo, 0, len(all))
	for _, sess := range all {
		list = append(list, sess.Info())
	}
	return list
}

// Wait blocks until every session goroutine has exited.
func (sm *SessionManager) Wait() {
	sm.wg.Wait()
}
