package logging

import (
	"log/slog"

	"github.com/google/uuid"
)

// Attribute keys shared by the client packages.
const (
	KeyService   = "service"
	KeyVersion   = "version"
	KeyEnv       = "env"
	KeyClientID  = "client_id"
	KeySessionID = "session_id"
	KeyRoomID    = "room_id"
	KeyRole      = "role"
)

func processAttrs(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String(KeyService, cfg.Service),
		slog.String(KeyVersion, cfg.Version),
		slog.String(KeyEnv, string(cfg.Env)),
		slog.String(KeyClientID, cfg.ClientID),
	}
}

// NewSessionID returns an id for one chat session.
func NewSessionID() string {
	return uuid.NewString()
}

// ForSession scopes l to one chat session in one room.
func ForSession(l *slog.Logger, sessionID, roomID string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(KeySessionID, sessionID, KeyRoomID, roomID)
}
