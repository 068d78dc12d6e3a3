package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClientClosed  = errors.New("web: client closed")
	ErrSendQueueFull = errors.New("web: send queue full")
)

const (
	sendQueueSize = 256
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	maxFrameBytes = 1 << 20
)

// Handler drives one connected client. HandleMessage and HandleAudio are
// called from the read loop and must not block.
type Handler interface {
	HandleMessage(ctx context.Context, msg Inbound)
	HandleAudio(ctx context.Context, data []byte)
	// Close is called once after the connection ends.
	Close()
}

// SessionFactory builds the handler for a new connection.
type SessionFactory func(ctx context.Context, client *Client) (Handler, error)

// Client is one websocket connection. Writes are serialized through a queue
// drained by a single write loop.
type Client struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	log    *slog.Logger
}

func newClient(id string, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		sendCh: make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		log:    log.With(slog.String("client_id", id)),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues a message. It never blocks; a full queue drops the message.
func (c *Client) Send(msg Outbound) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	case c.sendCh <- b:
		return nil
	default:
		c.log.Warn("send_queue_full", slog.String("type", msg.Type))
		return ErrSendQueueFull
	}
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the connection. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write_failed", slog.String("error", err.Error()))
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, h Handler) {
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read_failed", slog.String("error", err.Error()))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		switch kind {
		case websocket.BinaryMessage:
			h.HandleAudio(ctx, data)
		case websocket.TextMessage:
			var msg Inbound
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
				_ = c.Send(ErrorMessage("malformed message"))
				continue
			}
			h.HandleMessage(ctx, msg)
		}
	}
}
