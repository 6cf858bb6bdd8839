package chattest

import (
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/umar/donaty-chat/internal/models"
	"github.com/umar/donaty-chat/internal/transport"
)

const maxTextRunes = 2000

func (s *Server) handleJoin(c *Client, roomID string) {
	if !s.allowed(c.claims, roomID) {
		c.sendError("No autorizado en esta sala")
		return
	}
	c.mu.Lock()
	c.rooms[roomID] = true
	c.mu.Unlock()
	c.sendFrame(transport.TypeJoinedRoom, nil)
}

func (s *Server) handleLeave(c *Client, roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (s *Server) handleMessage(c *Client, p transport.SendMessagePayload) {
	if p.Text == "" || p.RoomID == "" {
		c.sendError("roomId y text son requeridos")
		return
	}
	if utf8.RuneCountInString(p.Text) > maxTextRunes {
		c.sendError("mensaje demasiado largo")
		return
	}
	if !c.inRoom(p.RoomID) {
		c.sendError("No perteneces a esta sala")
		return
	}

	msg := models.Message{
		ID:          uuid.NewString(),
		RoomID:      p.RoomID,
		SenderID:    c.UserID,
		SenderRole:  c.Role,
		SenderName:  c.Name,
		SenderEmail: c.Email,
		Text:        p.Text,
		CreatedAt:   s.store.Now(),
	}
	s.store.Append(msg)

	data, err := transport.NewFrame(transport.TypeMessage, msg)
	if err != nil {
		slog.Error("failed to encode message", "error", err)
		return
	}
	// Everyone in the room, sender included, gets the stored copy.
	s.hub.BroadcastToRoom(p.RoomID, data, nil)
}

func (s *Server) handleTyping(c *Client, roomID string) {
	if !c.inRoom(roomID) {
		return
	}
	data, err := transport.NewFrame(transport.TypeTyping, transport.TypingPayload{
		User: &models.User{Name: c.Name, Email: c.Email},
	})
	if err != nil {
		return
	}
	s.hub.BroadcastToRoom(roomID, data, c)
}
