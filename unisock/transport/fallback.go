package transport

import (
	"errors"
	"io"
	"net/url"
	"sync"
	"sync/atomic"

	"golang.org/x/net/websocket"
)

// frame carries one received message together with its wire payload
// type, which the stock Message codec discards.
type frame struct {
	payloadType byte
	data        []byte
}

var frameCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		f, ok := v.(frame)
		if !ok {
			return nil, websocket.UnknownFrame, websocket.ErrNotSupported
		}
		return f.data, f.payloadType, nil
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		f, ok := v.(*frame)
		if !ok {
			return websocket.ErrNotSupported
		}
		f.payloadType = payloadType
		f.data = data
		return nil
	},
}

// FallbackConn is the lowest-common-denominator connection: a plain
// client-side dial with no say over the handshake request.
type FallbackConn struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	cb        Callbacks
	state     atomic.Int32
	started   bool
	closeCode StatusCode
	closeText string
}

// DialFallback connects to address. Handshake headers are not
// supported on this path.
func DialFallback(address string) (*FallbackConn, error) {
	origin, err := originFor(address)
	if err != nil {
		return nil, err
	}

	cfg, err := websocket.NewConfig(address, origin)
	if err != nil {
		return nil, err
	}

	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, err
	}

	f := &FallbackConn{conn: conn}
	f.state.Store(StateOpen)
	return f, nil
}

func originFor(address string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host, nil
}

func (f *FallbackConn) Bind(cb Callbacks) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cb = cb
}

func (f *FallbackConn) Start() {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return
	}
	f.started = true
	cb := f.cb
	f.mu.Unlock()

	go f.pump(cb)
}

func (f *FallbackConn) pump(cb Callbacks) {
	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	for {
		var fr frame
		err := frameCodec.Receive(f.conn, &fr)
		if err != nil {
			f.finish(cb, err)
			return
		}
		if cb.OnMessage == nil {
			continue
		}
		if fr.payloadType == websocket.TextFrame {
			cb.OnMessage(string(fr.data))
		} else {
			cb.OnMessage(fr.data)
		}
	}
}

func (f *FallbackConn) finish(cb Callbacks, err error) {
	// This transport surfaces no close status; a clean shutdown reads
	// as EOF and anything else as an abnormal closure.
	code := int(StatusAbnormalClosure)
	var reason []byte

	switch {
	case f.state.Load() >= StateClosing:
		f.mu.Lock()
		code = int(f.closeCode)
		reason = []byte(f.closeText)
		f.mu.Unlock()
	case errors.Is(err, io.EOF):
		code = int(StatusNoStatusReceived)
	default:
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}

	// This transport does not tear itself down on read failure;
	// release the connection here or a peer-initiated close leaks it.
	_ = f.conn.Close()

	f.state.Store(StateClosed)
	if cb.OnClose != nil {
		cb.OnClose(code, reason)
	}
}

func (f *FallbackConn) Send(typ MessageType, data []byte) error {
	if f.state.Load() != StateOpen {
		return ErrNotConnected
	}

	pt := byte(websocket.BinaryFrame)
	if typ == Text {
		pt = websocket.TextFrame
	}
	return frameCodec.Send(f.conn, frame{payloadType: pt, data: data})
}

func (f *FallbackConn) Close(code StatusCode, reason string) error {
	f.mu.Lock()
	if !f.state.CompareAndSwap(StateOpen, StateClosing) {
		f.mu.Unlock()
		return nil
	}
	f.closeCode = code
	f.closeText = reason
	started := f.started
	f.mu.Unlock()

	_ = f.conn.WriteClose(int(code))
	err := f.conn.Close()
	if !started {
		f.state.Store(StateClosed)
	}
	return err
}

func (f *FallbackConn) State() int32 {
	return f.state.Load()
}
