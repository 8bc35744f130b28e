package chat

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait.
	maxMessageSize = 64 * 1024           // SDP offers run to a few KB.
)

// Client binds a websocket connection to its Session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *Session
	log     *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, session *Session, log *zap.Logger) *Client {
	return &Client{hub: hub, conn: conn, session: session, log: log}
}

// ReadPump dispatches inbound frames one at a time until the connection
// fails, then disconnects the session.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Disconnect(context.WithoutCancel(ctx), c.session)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", zap.String("user_id", c.session.UserID), zap.Error(err))
			}
			return
		}
		c.hub.Dispatch(ctx, c.session, message)
	}
}

// WritePump writes queued frames, one websocket message each, and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	out := c.session.Outbound()
	for {
		select {
		case message, ok := <-out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Session closed: evicted, replaced or shut down.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
