// Package transport is the live channel between a chat client and the
// backend: a credentialed connection that emits named events and yields the
// events the server pushes.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrClosed     = errors.New("transport: connection closed")
	ErrSendBuffer = errors.New("transport: send buffer full")
)

// Event is one server-pushed event.
type Event struct {
	Type    string
	Payload json.RawMessage
}

// Decode unmarshals the payload into dst. An empty payload leaves dst untouched.
func (e Event) Decode(dst interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dst)
}

// Conn is one live connection. Events yields every event in delivery order
// and is closed when the connection ends; it is never reopened, a new
// connection yields a new sequence.
type Conn interface {
	Emit(eventType string, payload interface{}) error
	Events() <-chan Event
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, hs Handshake) (Conn, error)
}
