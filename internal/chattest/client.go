package chattest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/umar/donaty-chat/internal/auth"
	"github.com/umar/donaty-chat/internal/models"
	"github.com/umar/donaty-chat/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	handshakeWait  = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	srv    *Server
	conn   *websocket.Conn
	claims *auth.Claims
	UserID string
	Name   string
	Email  string
	Role   models.Role
	rooms  map[string]bool
	send   chan []byte
	mu     sync.Mutex
}

func (c *Client) inRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[roomID]
}

// serveWS upgrades the request and waits for the handshake frame before
// registering the client.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	claims, msg := s.readHandshake(conn)
	if claims == nil {
		data, _ := transport.NewFrame(transport.TypeConnectError, transport.ErrorPayload{Msg: msg})
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, data)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg))
		conn.Close()
		return
	}

	client := &Client{
		srv:    s,
		conn:   conn,
		claims: claims,
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   claims.Role,
		rooms:  make(map[string]bool),
		send:   make(chan []byte, 256),
	}

	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	client.sendFrame(transport.TypeConnect, nil)

	go client.writePump()
	go client.readPump()
}

func (s *Server) readHandshake(conn *websocket.Conn) (*auth.Claims, string) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, "handshake timeout"
	}
	var frame transport.Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != transport.TypeHandshake {
		return nil, "handshake expected"
	}
	var hs transport.HandshakePayload
	if err := json.Unmarshal(frame.Payload, &hs); err != nil || hs.Auth.Token == "" {
		return nil, "token requerido"
	}
	claims, err := auth.ValidateToken(hs.Auth.Token, s.secret)
	if err != nil {
		return nil, "token inválido"
	}
	if hs.Auth.Role != "" && models.Role(hs.Auth.Role) != claims.Role {
		return nil, "rol no coincide con el token"
	}
	return claims, ""
}

func (c *Client) readPump() {
	defer func() {
		c.srv.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws read error", "error", err, "user_id", c.UserID)
			}
			break
		}

		var frame transport.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		c.handleFrame(frame)
	}
}

func (c *Client) writePump() {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleFrame(frame transport.Frame) {
	switch frame.Type {
	case transport.TypeJoinRoom:
		var p transport.RoomPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.RoomID == "" {
			c.sendError("roomId requerido")
			return
		}
		c.srv.handleJoin(c, p.RoomID)
	case transport.TypeLeaveRoom:
		var p transport.RoomPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return
		}
		c.srv.handleLeave(c, p.RoomID)
	case transport.TypeMessage:
		var p transport.SendMessagePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("mensaje inválido")
			return
		}
		p.Text = strings.TrimSpace(p.Text)
		c.srv.handleMessage(c, p)
	case transport.TypeTyping:
		var p transport.RoomPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return
		}
		c.srv.handleTyping(c, p.RoomID)
	}
}

func (c *Client) sendFrame(frameType string, payload interface{}) {
	data, err := transport.NewFrame(frameType, payload)
	if err != nil {
		return
	}
	c.srv.hub.SendTo(c, data)
}

func (c *Client) sendError(msg string) {
	c.sendFrame(transport.TypeError, transport.ErrorPayload{Msg: msg})
}
