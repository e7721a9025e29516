package unisock

import (
	"sync"

	"github.com/google/uuid"

	"github.com/solviumdream/unisock.go/unisock/transport"
)

// adapterSocket adapts a native connection to the Socket contract.
//
// With a plain emitter-style connection it wires the four callback
// kinds into its own listener table, normalizing message shapes and
// stringifying close reasons on the way through. When the connection
// itself accepts standard listener registration, registrations are
// forwarded to it and the manual wiring is skipped entirely; that
// capability is resolved once at construction, never re-probed.
type adapterSocket struct {
	id        string
	conn      transport.Conn
	table     *listenerTable
	normalize bool
	std       ListenerConn

	openMu   sync.Mutex
	openSeen bool
	openSent bool
}

func newAdapterSocket(conn transport.Conn, std ListenerConn, normalize bool) *adapterSocket {
	s := &adapterSocket{
		id:        uuid.NewString(),
		conn:      conn,
		table:     newListenerTable(),
		normalize: normalize,
		std:       std,
	}
	if std == nil {
		conn.Bind(s.callbacks())
	}
	return s
}

func (s *adapterSocket) callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnOpen: s.deliverOpen,
		OnMessage: func(raw any) {
			var p Payload
			if s.normalize {
				p = Normalize(raw)
			} else {
				p = canonicalPayload(raw)
			}
			s.table.fire(Event{Kind: EventMessage, Data: p})
		},
		OnError: func(err error) {
			s.table.fire(Event{Kind: EventError, Err: err})
		},
		OnClose: func(code int, reason []byte) {
			s.table.fire(Event{Kind: EventClose, Code: code, Reason: string(reason)})
		},
	}
}

// canonicalPayload wraps shapes from connections whose native layer
// already delivers canonical text/binary messages.
func canonicalPayload(raw any) Payload {
	switch v := raw.(type) {
	case string:
		return Text(v)
	case []byte:
		return Binary(v)
	}
	return Binary([]byte{})
}

// deliverOpen hands the open event to the registered listener, or
// records it for replay if none is registered yet. The factory hands
// back an already-open socket, so without the replay a caller could
// never observe open at all.
func (s *adapterSocket) deliverOpen() {
	s.openMu.Lock()
	s.openSeen = true
	fn := s.table.get(EventOpen)
	if fn != nil {
		s.openSent = true
	}
	s.openMu.Unlock()

	if fn != nil {
		fn(Event{Kind: EventOpen})
	}
}

func (s *adapterSocket) ID() string {
	return s.id
}

func (s *adapterSocket) ReadyState() ReadyState {
	return ReadyState(s.conn.State())
}

func (s *adapterSocket) On(kind EventKind, fn Listener) {
	if s.std != nil {
		s.std.AddEventListener(kind, fn)
		return
	}

	s.table.set(kind, fn)
	if kind != EventOpen {
		return
	}

	s.openMu.Lock()
	replay := s.openSeen && !s.openSent
	if replay {
		s.openSent = true
	}
	s.openMu.Unlock()

	if replay {
		go fn(Event{Kind: EventOpen})
	}
}

func (s *adapterSocket) Send(p Payload) error {
	if s.ReadyState() != Open {
		return ErrConnectionClosed
	}

	if p.Kind == PayloadText {
		return s.conn.Send(transport.Text, []byte(p.Text))
	}
	return s.conn.Send(transport.Binary, p.Binary)
}

func (s *adapterSocket) Close(code int, reason string) error {
	if code == 0 {
		code = int(transport.StatusNormalClosure)
	}
	return s.conn.Close(transport.StatusCode(code), reason)
}
