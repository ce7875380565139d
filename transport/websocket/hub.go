package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxMessageSize = 4 * protocol.MaxLineLength

	// Lines buffered per client before it is considered too slow.
	sendBuffer = 256
)

var (
	ErrClientClosed = errors.New("websocket client closed")
	ErrSlowClient   = errors.New("websocket client too slow")
)

var logger = logrus.WithField("component", "websocket")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one WebSocket connection. It implements protocol.Peer.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sessionID string
}

// WriteLine queues a line for the write pump. A client whose buffer is
// full is disconnected.
func (c *Client) WriteLine(line string) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- []byte(line):
		return nil
	default:
		c.Close()
		return ErrSlowClient
	}
}

// Close stops the write pump after it flushed the queued lines; the pump
// then closes the connection, which ends the read pump.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Hub maintains the set of active WebSocket clients
type Hub struct {
	svc     service.GameService
	clients map[*Client]bool
	count   atomic.Int64

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed once Run returns
	stopped chan struct{}
}

// NewHub creates a new WebSocket gateway in front of svc.
func NewHub(svc service.GameService) *Hub {
	return &Hub{
		svc:        svc,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run starts the hub's event loop. When ctx is cancelled every client is
// closed and Run returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			logger.WithFields(logrus.Fields{"session": client.sessionID, "clients": len(h.clients)}).Debug("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.count.Store(int64(len(h.clients)))
				logger.WithFields(logrus.Fields{"session": client.sessionID, "clients": len(h.clients)}).Debug("client unregistered")
			}

		case <-ctx.Done():
			for client := range h.clients {
				client.Close()
			}
			h.clients = map[*Client]bool{}
			h.count.Store(0)
			return
		}
	}
}

// Count returns the number of connected WebSocket clients.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// ServeHTTP implements http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// ServeWS upgrades the request and runs the connection as a game session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go client.writePump()

	ctx := context.WithoutCancel(r.Context())
	sess, err := h.svc.Open(ctx, client, r.RemoteAddr)
	if err != nil {
		client.Close()
		return
	}
	client.sessionID = sess.ID

	select {
	case h.register <- client:
	case <-h.stopped:
		h.svc.Close(ctx, sess.ID)
		client.Close()
		return
	}

	go client.readPump(ctx)
}

// readPump feeds every line of every text frame to the dispatcher.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.svc.Close(ctx, c.sessionID)
		c.Close()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).WithField("session", c.sessionID).Debug("websocket read failed")
			}
			return
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			if !c.hub.svc.Handle(ctx, c.sessionID, line) {
				return
			}
		}
	}
}

// writePump pumps queued lines to the WebSocket connection. Lines queued
// together are coalesced into one text frame, one line each.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case line := <-c.send:
			if err := c.writeFrame(line); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) writeFrame(first []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(first)
	w.Write([]byte{'\n'})

	// Add queued lines to the current WebSocket message
	n := len(c.send)
	for i := 0; i < n; i++ {
		w.Write(<-c.send)
		w.Write([]byte{'\n'})
	}
	return w.Close()
}

// flush writes whatever is still queued when the client closes.
func (c *Client) flush() {
	if len(c.send) == 0 {
		return
	}
	c.writeFrame(<-c.send)
}
