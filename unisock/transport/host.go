package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Read buffer size for fragment delivery. A binary message larger than
// this arrives at the callback as an ordered chunk sequence instead of
// one contiguous allocation.
const hostReadChunk = 4096

var ErrNotConnected = errors.New("not connected")

// HostConn is an emitter-style connection over a gorilla websocket.
// Handshake headers are honored. Binary payloads are delivered in the
// raw shapes the reader produces; callers are expected to normalize.
type HostConn struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	cb           Callbacks
	state        atomic.Int32
	started      bool
	closeCode    StatusCode
	closeText    string
	writeTimeout time.Duration
}

// DialHost connects to address, applying headers during the handshake.
// Dial errors are returned untouched.
func DialHost(ctx context.Context, address string, headers http.Header, handshakeTimeout time.Duration) (*HostConn, error) {
	dialer := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		dialer.HandshakeTimeout = handshakeTimeout
	}

	conn, _, err := dialer.DialContext(ctx, address, headers)
	if err != nil {
		return nil, err
	}

	h := &HostConn{
		conn:         conn,
		writeTimeout: 10 * time.Second,
	}
	h.state.Store(StateOpen)
	return h, nil
}

func (h *HostConn) Bind(cb Callbacks) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cb = cb
}

// Start begins the read pump. Bind must have been called first; events
// delivered before Start are lost.
func (h *HostConn) Start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	cb := h.cb
	h.mu.Unlock()

	go h.pump(cb)
}

func (h *HostConn) pump(cb Callbacks) {
	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	for {
		typ, r, err := h.conn.NextReader()
		if err != nil {
			h.finish(cb, err)
			return
		}

		raw, err := readRaw(typ, r)
		if err != nil {
			h.finish(cb, err)
			return
		}
		if cb.OnMessage != nil {
			cb.OnMessage(raw)
		}
	}
}

// readRaw drains one message. Text arrives whole as a string; binary
// arrives as a single []byte or, past one read buffer, as a [][]byte
// chunk sequence in wire order.
func readRaw(typ int, r io.Reader) (any, error) {
	if typ == websocket.TextMessage {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}

	var chunks [][]byte
	for {
		buf := make([]byte, hostReadChunk)
		n, err := r.Read(buf)
		if n > 0 {
			chunks = append(chunks, buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	switch len(chunks) {
	case 0:
		return []byte{}, nil
	case 1:
		return chunks[0], nil
	}
	return chunks, nil
}

func (h *HostConn) finish(cb Callbacks, err error) {
	code := int(StatusAbnormalClosure)
	var reason []byte

	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		code = ce.Code
		reason = []byte(ce.Text)
	case h.state.Load() >= StateClosing:
		h.mu.Lock()
		code = int(h.closeCode)
		reason = []byte(h.closeText)
		h.mu.Unlock()
	default:
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}

	// The pump is the last reader; release the underlying connection
	// here or a peer-initiated close leaks it.
	_ = h.conn.Close()

	h.state.Store(StateClosed)
	if cb.OnClose != nil {
		cb.OnClose(code, reason)
	}
}

func (h *HostConn) Send(typ MessageType, data []byte) error {
	if h.state.Load() != StateOpen {
		return ErrNotConnected
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.writeTimeout > 0 {
		if err := h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return err
		}
	}

	mt := websocket.BinaryMessage
	if typ == Text {
		mt = websocket.TextMessage
	}
	return h.conn.WriteMessage(mt, data)
}

func (h *HostConn) Close(code StatusCode, reason string) error {
	// Code and reason are recorded in the same critical section as the
	// state transition so the pump can never observe Closing with a
	// zero close code.
	h.mu.Lock()
	if !h.state.CompareAndSwap(StateOpen, StateClosing) {
		h.mu.Unlock()
		return nil
	}
	h.closeCode = code
	h.closeText = reason
	conn := h.conn
	started := h.started
	h.mu.Unlock()

	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(int(code), reason),
		time.Now().Add(time.Second),
	)
	if closeErr := conn.Close(); err == nil {
		err = closeErr
	}

	// Without a pump there is nobody left to observe the shutdown.
	if !started {
		h.state.Store(StateClosed)
	}
	return err
}

func (h *HostConn) State() int32 {
	return h.state.Load()
}
