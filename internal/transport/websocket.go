package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024

	sendQueueSize  = 256
	eventQueueSize = 64
)

// WSDialer opens websocket connections to the chat backend.
type WSDialer struct {
	URL    string
	Dialer *websocket.Dialer
	Header http.Header

	// EmitRate and EmitBurst pace outgoing frames. Zero rate disables pacing.
	EmitRate  float64
	EmitBurst int

	Logger *slog.Logger
}

func (d *WSDialer) Dial(ctx context.Context, hs Handshake) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ws, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	data, err := NewFrame(TypeHandshake, HandshakePayload{Auth: hs})
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("encode handshake: %w", err)
	}
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.Close()
		return nil, fmt.Errorf("send handshake: %w", err)
	}

	limit := rate.Inf
	burst := d.EmitBurst
	if d.EmitRate > 0 {
		limit = rate.Limit(d.EmitRate)
		if burst <= 0 {
			burst = 1
		}
	}

	c := &wsConn{
		conn:    ws,
		send:    make(chan []byte, sendQueueSize),
		events:  make(chan Event, eventQueueSize),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With("url", d.URL),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

type wsConn struct {
	conn    *websocket.Conn
	send    chan []byte
	events  chan Event
	closed  chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	logger  *slog.Logger
}

func (c *wsConn) Events() <-chan Event { return c.events }

// Emit queues a frame for the writer. It never blocks.
func (c *wsConn) Emit(eventType string, payload interface{}) error {
	data, err := NewFrame(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrClosed
	default:
		return ErrSendBuffer
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *wsConn) readPump() {
	defer func() {
		close(c.events)
		c.Close()
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
				c.logger.Warn("ws read error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			c.logger.Debug("dropping malformed frame", "error", err)
			continue
		}

		select {
		case c.events <- Event{Type: frame.Type, Payload: frame.Payload}:
		case <-c.closed:
			return
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	// Cancelled on Close so a paced write never outlives the connection.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-c.closed:
			c.drain()
			c.writeClose()
			return
		case data := <-c.send:
			if err := c.limiter.Wait(ctx); err != nil {
				// Closed while pacing: flush the rest unpaced.
				if c.write(data) == nil {
					c.drain()
				}
				c.writeClose()
				return
			}
			if err := c.write(data); err != nil {
				c.logger.Warn("ws write error", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// drain flushes frames queued before Close, such as a final leaveRoom.
func (c *wsConn) drain() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) writeClose() {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
