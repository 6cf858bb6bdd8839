package chat

import "errors"

var (
	// ErrAuthenticationMissing: no room id or token. Fatal to the session.
	ErrAuthenticationMissing = errors.New("chat: falta roomId o token para el chat")
	// ErrHistoryLoadFailed: the session continues live-only.
	ErrHistoryLoadFailed = errors.New("chat: history load failed")
	// ErrTransport wraps an error event pushed by the server.
	ErrTransport = errors.New("chat: transport error")
	// ErrTransportDisconnected ends the session.
	ErrTransportDisconnected = errors.New("chat: disconnected")
	// ErrSendRejectedNotConnected: a send while not joined.
	ErrSendRejectedNotConnected = errors.New("chat: sin conexión al chat")

	ErrConnectFailed = errors.New("chat: connect failed")
	ErrSessionClosed = errors.New("chat: session closed")
)

// Notice is a recoverable condition reported to the hosting view.
type Notice struct {
	Err error
}

func (n Notice) Message() string { return n.Err.Error() }
