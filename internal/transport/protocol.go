package transport

import (
	"encoding/json"

	"github.com/umar/donaty-chat/internal/models"
)

const (
	TypeHandshake = "handshake"
	TypeJoinRoom  = "joinRoom"
	TypeLeaveRoom = "leaveRoom"
	TypeMessage   = "message"
	TypeTyping    = "typing"

	TypeConnect      = "connect"
	TypeConnectError = "connect_error"
	TypeJoinedRoom   = "joinedRoom"
	TypeError        = "error"
)

// Frame is the JSON envelope of every websocket text frame.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HandshakePayload struct {
	Auth Handshake `json:"auth"`
}

// Handshake carries the credentials presented when the connection opens.
type Handshake struct {
	Token string `json:"token"`
	Role  string `json:"role,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type TypingPayload struct {
	User *models.User `json:"user,omitempty"`
}

type ErrorPayload struct {
	Msg string `json:"msg,omitempty"`
}

func NewFrame(frameType string, payload interface{}) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Frame{Type: frameType, Payload: p})
}
