package bridge

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"ribosim/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// conn is one headset connection.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	remote string
	logger *slog.Logger
}

func newConn(ws *websocket.Conn, buffer int, logger *slog.Logger) *conn {
	return &conn{
		ws:     ws,
		send:   make(chan []byte, buffer),
		remote: ws.RemoteAddr().String(),
		logger: logger,
	}
}

// readPump decodes inbound messages until the socket closes.
func (c *conn) readPump(hub *Hub, handle func(Inbound) error) {
	defer func() {
		hub.remove(c)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("headset connection closed", logging.String("remote", c.remote), logging.Error(err))
			}
			return
		}
		var msg Inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Info("undecodable headset message ignored",
				logging.String("remote", c.remote),
				logging.Error(err),
				logging.String(logging.FieldEventType, "message_invalid"),
			)
			continue
		}
		if err := handle(msg); err != nil {
			c.logger.Info("headset message rejected",
				logging.String("remote", c.remote),
				logging.String("type", msg.Type),
				logging.Error(err),
				logging.String(logging.FieldEventType, "message_rejected"),
			)
		}
	}
}

// writePump forwards queued messages and keeps the connection alive with pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
