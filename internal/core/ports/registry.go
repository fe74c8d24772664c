package ports

import (
	"callnet/internal/core/domain"
)

// Conn is one live transport connection handle. gorilla/websocket conns
// satisfy this through the signal package's wrapper.
type Conn interface {
	ID() domain.ConnID
	WriteEvent(event string, payload interface{}) error
	Close() error
}

// SocketRegistry maps user identity to live connection handles. All methods
// are safe under concurrent access. Send is best-effort: a failure is
// reported to the caller, never retried here.
type SocketRegistry interface {
	Bind(user domain.UserID, conn Conn)
	Unbind(conn Conn)
	Resolve(user domain.UserID) []Conn
	Send(conn Conn, event string, payload interface{}) error
}

// Dispatcher fans a notification out to every bound socket of its recipient.
type Dispatcher interface {
	Dispatch(n domain.Notification) error
}
