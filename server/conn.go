package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"collabweave/protocol"
	"collabweave/weave"
)

// maxMessageSize bounds one inbound frame.
const maxMessageSize = 8 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one websocket connection. site and synced are guarded by the
// hub lock.
type Client struct {
	id     uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	site   weave.SiteID
	synced bool
	logger *slog.Logger
}

func serveWs(ctx context.Context, hub *Hub, cfg *Config, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade", "error", err)
		return
	}
	c := &Client{
		id:   uuid.New(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, cfg.SendBuffer),
	}
	c.logger = hub.logger.With("conn", c.id)
	hub.register(c)
	go c.writePump(cfg.WriteTimeout)
	go c.readPump(ctx)
}

// readPump handles inbound messages one at a time. Any bad message ends the
// connection.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read", "error", err)
			}
			return
		}
		cmd, err := protocol.DecodeClient(msg)
		if err != nil {
			c.logger.Warn("dropping connection", "error", err)
			return
		}
		if err := c.hub.handle(ctx, c, cmd); err != nil {
			c.logger.Warn("dropping connection", "error", err)
			return
		}
	}
}

func (c *Client) writePump(timeout time.Duration) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.logger.Debug("write", "error", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
