package main

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// connLimiter caps open sockets per remote IP and overall.
type connLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newConnLimiter(maxPerIP, maxTotal int) *connLimiter {
	return &connLimiter{perIP: make(map[string]int), maxPerIP: maxPerIP, maxTotal: maxTotal}
}

// acquire reserves a slot for ip, reporting false when a cap is reached.
func (l *connLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total >= l.maxTotal || l.perIP[ip] >= l.maxPerIP {
		return false
	}
	l.perIP[ip]++
	l.total++
	return true
}

func (l *connLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip]--; l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
	l.total--
}

func (l *connLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// HubOptions are the hub's connection settings.
type HubOptions struct {
	PublicURL     string
	MaxConnsPerIP int
	MaxConns      int
}

// Hub owns the connected clients and the services their messages reach:
// sessions, pilot tokens, and the run journal.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	sessions  *SessionManager
	auth      *Auth
	db        *DB
	publicURL string
	limits    *connLimiter
	log       *logrus.Entry
}

// NewHub creates a new Hub. db may be nil.
func NewHub(sessions *SessionManager, auth *Auth, db *DB, opts HubOptions, log *logrus.Entry) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sessions:   sessions,
		auth:       auth,
		db:         db,
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
		limits:     newConnLimiter(opts.MaxConnsPerIP, opts.MaxConns),
		log:        log,
	}
}

// WatchURL is the shareable spectator link for a session
func (h *Hub) WatchURL(sid string) string {
	return h.publicURL + "/watch/" + sid
}

// Accept reserves a connection slot for ip. Every accepted connection must
// be paired with a Release.
func (h *Hub) Accept(ip string) bool {
	ok := h.limits.acquire(ip)
	if !ok {
		h.log.WithField("remote", ip).Warn("connection refused, limit reached")
	}
	return ok
}

func (h *Hub) Release(ip string) { h.limits.release(ip) }

// Register hands c to the hub, reporting false once Run has returned.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister closes c's send channel unless Run has already done so.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Run registers and unregisters clients until ctx is done, then closes
// every remaining send channel so the write pumps hang up.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			client.log.Debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			client.log.Debug("client unregistered")

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ConnCount returns the number of open sockets, registered or not.
func (h *Hub) ConnCount() int { return h.limits.count() }
