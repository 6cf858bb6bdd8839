package models

import "time"

// Message is one chat entry of a donation room as delivered by the backend,
// either from the history endpoint or from a live "message" event.
type Message struct {
	ID          string    `json:"_id,omitempty"`
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	SenderRole  Role      `json:"senderRol,omitempty"`
	SenderName  string    `json:"senderNombre,omitempty"`
	SenderEmail string    `json:"senderEmail,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Key identifies a message for de-duplication: the server id when present,
// otherwise the sender and creation time.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.SenderID + "@" + m.CreatedAt.UTC().Format(time.RFC3339Nano)
}

func (m Message) SenderDisplayName() string {
	switch {
	case m.SenderName != "":
		return m.SenderName
	case m.SenderEmail != "":
		return m.SenderEmail
	default:
		return "Usuario"
	}
}

// RoleLabel is the label shown next to the sender; unknown roles render as admin.
func (m Message) RoleLabel() string {
	if m.SenderRole.Valid() {
		return string(m.SenderRole)
	}
	return string(RoleAdmin)
}
