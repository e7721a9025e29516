package unisock

import (
	"errors"
	"fmt"
)

// EventKind names one of the four event slots a socket exposes.
type EventKind string

const (
	EventOpen    EventKind = "open"
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
	EventClose   EventKind = "close"
)

// ReadyState is the lifecycle stage of a connection. Over the life of
// one socket the observed values only ever move forward, and Closing
// may be skipped.
type ReadyState int32

const (
	Connecting ReadyState = 0
	Open       ReadyState = 1
	Closing    ReadyState = 2
	Closed     ReadyState = 3
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("readystate(%d)", int32(s))
}

// Event is delivered to a registered listener. Which fields are set
// depends on the kind: open carries nothing, message carries Data,
// error carries Err verbatim, close carries Code and Reason.
type Event struct {
	Kind   EventKind
	Data   Payload
	Code   int
	Reason string
	Err    error
}

// Listener handles events of a single kind.
type Listener func(Event)

// Socket is the unified connection contract. Each event kind holds at
// most one listener; registering again for the same kind replaces the
// previous listener rather than adding to it.
type Socket interface {
	ID() string

	ReadyState() ReadyState

	On(kind EventKind, fn Listener)

	Send(p Payload) error

	Close(code int, reason string) error
}

// ListenerConn is implemented by native connections that accept
// standard listener registration themselves. When the underlying
// connection satisfies it, registrations are forwarded directly and
// manual event wiring is skipped.
type ListenerConn interface {
	AddEventListener(kind EventKind, fn Listener)
}

var (
	ErrConnectionClosed = errors.New("connection closed")
)

// UpgradeRefusedError reports a handshake whose response carried no
// paired connection.
type UpgradeRefusedError struct {
	Status     int
	StatusText string
}

func (e *UpgradeRefusedError) Error() string {
	return fmt.Sprintf("upgrade refused: %d %s", e.Status, e.StatusText)
}
