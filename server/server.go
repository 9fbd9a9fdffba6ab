package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.Accept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.Release(ip)
			hub.log.WithError(err).Warn("upgrade")
			return
		}

		client := NewClient(hub, conn, ip)
		if !hub.Register(client) {
			hub.Release(ip)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	})

	// Spectator link as a QR code
	mux.HandleFunc("GET /qr/{sid}", func(w http.ResponseWriter, r *http.Request) {
		sid := r.PathValue("sid")
		if _, err := hub.sessions.Get(sid); err != nil {
			http.NotFound(w, r)
			return
		}
		png, err := qrcode.Encode(hub.WatchURL(sid), qrcode.Medium, qrSize)
		if err != nil {
			hub.log.WithError(err).Error("qr encode")
			http.Error(w, "qr encode failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	// Session lookup behind the spectator link
	mux.HandleFunc("GET /watch/{sid}", func(w http.ResponseWriter, r *http.Request) {
		sess, err := hub.sessions.Get(r.PathValue("sid"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, ErrorMsg{Msg: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sess.Info())
	})

	// Journaled run summary
	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if hub.db == nil {
			writeJSON(w, http.StatusNotFound, ErrorMsg{Msg: "run journal disabled"})
			return
		}
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorMsg{Msg: "bad run id"})
			return
		}
		sum, err := hub.db.RunSummary(r.Context(), id)
		if errors.Is(err, ErrRunNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorMsg{Msg: err.Error()})
			return
		}
		if err != nil {
			hub.log.WithError(err).Error("run summary")
			writeJSON(w, http.StatusInternalServerError, ErrorMsg{Msg: "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{
			"clients":  hub.ClientCount(),
			"conns":    hub.ConnCount(),
			"sessions": hub.sessions.Count(),
		})
	})

	return mux
}
