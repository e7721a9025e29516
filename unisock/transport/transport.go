package transport

// MessageType identifies the payload type of a websocket message.
type MessageType int

const (
	Text MessageType = iota + 1
	Binary
)

// StatusCode is an RFC 6455 close status code.
type StatusCode int

const (
	StatusNormalClosure    StatusCode = 1000
	StatusGoingAway        StatusCode = 1001
	StatusProtocolError    StatusCode = 1002
	StatusUnsupportedData  StatusCode = 1003
	StatusNoStatusReceived StatusCode = 1005
	StatusAbnormalClosure  StatusCode = 1006
	StatusInternalError    StatusCode = 1011
)

// Connection lifecycle states, in the order they may be observed.
const (
	StateConnecting int32 = iota
	StateOpen
	StateClosing
	StateClosed
)

// Callbacks is the event surface a connection reports into. Any field
// may be nil. OnMessage receives the raw native payload shape: a
// string for text messages, a []byte for a contiguous binary message,
// or a [][]byte chunk sequence for fragmented binary messages.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(raw any)
	OnError   func(err error)
	OnClose   func(code int, reason []byte)
}

// Conn is the minimal surface shared by all native connections.
// Bind must be called before Start; Start begins event delivery.
type Conn interface {
	Bind(Callbacks)
	Start()
	Send(typ MessageType, data []byte) error
	Close(code StatusCode, reason string) error
	State() int32
}
