package main

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 512
)

// Client adapts a gorilla websocket to Conn. Frames are queued on send and
// written by WritePump; ReadPump feeds inbound frames to the session.
type Client struct {
	conn    *websocket.Conn
	session *Session
	connID  string
	ip      string
	limiter *rate.Limiter
	send    chan []byte
	done    chan struct{}

	closeOnce sync.Once
}

// NewClient wraps conn. A non-positive messageRate disables the
// per-connection frame limit.
func NewClient(conn *websocket.Conn, ip string, messageRate float64) *Client {
	c := &Client{
		conn:   conn,
		connID: uuid.NewString(),
		ip:     ip,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	if messageRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(messageRate), max(int(messageRate)*2, 1))
	}
	return c
}

func (c *Client) ID() string { return c.connID }

func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame and tears down the
// socket. The read pump then fails and runs the disconnect cleanup.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Start attaches the client to hub and launches both pumps.
func (c *Client) Start(hub *Hub) {
	c.session = hub.Open(c)
	slog.Info("client connected", "conn", c.connID, "ip", c.ip)

	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) ReadPump() {
	defer func() {
		c.session.Disconnect()
		_ = c.Close()
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	throttled := 0
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("read error", "conn", c.connID, "err", err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			throttled++
			if throttled%100 == 1 {
				slog.Warn("client throttled", "conn", c.connID, "ip", c.ip, "throttled", throttled)
			}
			c.session.HandleThrottled(message)
			continue
		}

		c.session.Handle(message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Frames queued before Close, such as final counts, go out first.
			for drained := false; !drained; {
				select {
				case message := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					drained = true
				}
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
