package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
)

const pairedReadLimit = 32 << 20

// PairedConn is a connection obtained through a fetch-style upgrade.
// The dial response is surfaced to the caller so a refused upgrade can
// be reported with its status. No traffic flows until Start accepts
// the pairing.
type PairedConn struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	cb        Callbacks
	state     atomic.Int32
	started   bool
	closeCode StatusCode
	closeText string

	readCtx context.Context
	cancel  context.CancelFunc
}

// DialPaired issues the upgrade request for address with the given
// headers. On refusal the server response is returned alongside the
// error; on success the connection is paired but not yet accepted.
func DialPaired(ctx context.Context, address string, headers http.Header) (*PairedConn, *http.Response, error) {
	conn, resp, err := websocket.Dial(ctx, address, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, resp, err
	}
	conn.SetReadLimit(pairedReadLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	p := &PairedConn{
		conn:    conn,
		readCtx: readCtx,
		cancel:  cancel,
	}
	p.state.Store(StateOpen)
	return p, resp, nil
}

func (p *PairedConn) Bind(cb Callbacks) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cb = cb
}

// Start accepts the paired connection and begins the read pump.
func (p *PairedConn) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	cb := p.cb
	p.mu.Unlock()

	go p.pump(cb)
}

func (p *PairedConn) pump(cb Callbacks) {
	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	for {
		typ, data, err := p.conn.Read(p.readCtx)
		if err != nil {
			p.finish(cb, err)
			return
		}
		if cb.OnMessage == nil {
			continue
		}
		if typ == websocket.MessageText {
			cb.OnMessage(string(data))
		} else {
			cb.OnMessage(data)
		}
	}
}

func (p *PairedConn) finish(cb Callbacks, err error) {
	code := int(StatusAbnormalClosure)
	var reason []byte

	var ce websocket.CloseError
	switch {
	case errors.As(err, &ce):
		code = int(ce.Code)
		reason = []byte(ce.Reason)
	case p.state.Load() >= StateClosing:
		p.mu.Lock()
		code = int(p.closeCode)
		reason = []byte(p.closeText)
		p.mu.Unlock()
	default:
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}

	p.state.Store(StateClosed)
	if cb.OnClose != nil {
		cb.OnClose(code, reason)
	}
}

func (p *PairedConn) Send(typ MessageType, data []byte) error {
	if p.state.Load() != StateOpen {
		return ErrNotConnected
	}

	mt := websocket.MessageBinary
	if typ == Text {
		mt = websocket.MessageText
	}
	return p.conn.Write(p.readCtx, mt, data)
}

func (p *PairedConn) Close(code StatusCode, reason string) error {
	p.mu.Lock()
	if !p.state.CompareAndSwap(StateOpen, StateClosing) {
		p.mu.Unlock()
		return nil
	}
	p.closeCode = code
	p.closeText = reason
	started := p.started
	p.mu.Unlock()

	err := p.conn.Close(websocket.StatusCode(code), reason)
	p.cancel()
	if !started {
		p.state.Store(StateClosed)
	}
	return err
}

func (p *PairedConn) State() int32 {
	return p.state.Load()
}
