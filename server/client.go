package main

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 100
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	session    *Session
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	log        *logrus.Entry

	sendMu     sync.Mutex // guards send and sendClosed
	send       chan []byte
	sendClosed bool
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		log:        hub.log.WithField("remote", remoteAddr),
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.leave()
		c.hub.Release(c.remoteAddr)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("ws read")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn("rate limit exceeded, disconnecting")
			break
		}

		if msgType == websocket.BinaryMessage {
			c.handleBinaryInput(message)
		} else {
			c.handleMessage(message)
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF prefix from SendBinary marks a binary frame
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("marshal")
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	c.enqueue(data)
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	c.enqueue(msg)
}

// enqueue drops msg when the client is too slow or already hung up.
func (c *Client) enqueue(msg []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// closeSend closes the send channel once, telling WritePump to hang up.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) sendError(err error) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.WithError(err).Debug("unmarshal")
		return
	}

	switch env.T {
	case MsgList:
		c.handleList()
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgPilot:
		c.handlePilot(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgRestart:
		c.handleRestart()
	case MsgLeave:
		c.leave()
	}
}

func (c *Client) handleList() {
	c.SendJSON(Envelope{T: MsgSessions, Data: c.hub.sessions.List()})
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
	}
	sess, err := c.hub.sessions.Create(msg.Name)
	if err != nil {
		c.sendError(err)
		return
	}
	token, err := c.hub.auth.IssuePilotToken(sess.ID)
	if err != nil {
		c.log.WithError(err).Error("issue pilot token")
		c.sendError(errors.New("internal error"))
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: CreatedMsg{
		SessionID: sess.ID,
		Token:     token,
		WatchURL:  c.hub.WatchURL(sess.ID),
	}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.attach(msg.SessionID, false)
}

func (c *Client) handlePilot(data json.RawMessage) {
	var msg PilotMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := c.hub.auth.ValidatePilotToken(msg.Token, msg.SessionID); err != nil {
		c.log.WithError(err).Info("pilot rejected")
		c.sendError(ErrInvalidToken)
		return
	}
	c.attach(msg.SessionID, true)
}

func (c *Client) attach(sid string, pilot bool) {
	sess, err := c.hub.sessions.Get(sid)
	if err != nil {
		c.sendError(err)
		return
	}
	if c.session != nil && c.session != sess {
		c.leave()
	}
	if err := sess.Attach(c, pilot); err != nil {
		c.sendError(err)
		return
	}
	c.session = sess

	cfg := c.hub.sessions.opts.Sim
	c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{
		SessionID: sess.ID,
		Name:      sess.Name,
		Pilot:     pilot,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}})
	sess.SendSnapshot(c)
}

// handleBinaryInput decodes a compact 4-byte binary input message
func (c *Client) handleBinaryInput(msg []byte) {
	if c.session == nil {
		return
	}
	in, ok := decodeBinaryInput(msg)
	if !ok {
		return
	}
	c.session.SetInput(c, in)
}

func (c *Client) handleInput(data json.RawMessage) {
	if c.session == nil {
		return
	}
	var msg InputMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := c.session.SetInput(c, msg.ToInput()); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleRestart() {
	if c.session == nil {
		c.sendError(ErrSessionNotFound)
		return
	}
	if err := c.session.Restart(c); err != nil {
		c.sendError(err)
	}
}

func (c *Client) leave() {
	if c.session == nil {
		return
	}
	c.session.Detach(c)
	c.session = nil
}
