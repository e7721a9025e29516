package unisock

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// newEchoServer serves a websocket echo endpoint. Received handshake
// headers are reported on headerCh when non-nil.
func newEchoServer(t *testing.T, headerCh chan<- http.Header) *httptest.Server {
	t.Helper()

	upgrader := gws.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if headerCh != nil {
			headerCh <- r.Header.Clone()
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestGetSocketExposesContractOnAllVariants(t *testing.T) {
	srv := newEchoServer(t, nil)

	for _, variant := range []Variant{VariantEdgeSandbox, VariantProcessHost, VariantGeneric} {
		t.Run(variant.String(), func(t *testing.T) {
			sock, err := GetSocket(context.Background(), wsURL(srv), WithVariant(variant))
			require.NoError(t, err)
			defer sock.Close(0, "")

			require.NotEmpty(t, sock.ID())
			require.Equal(t, Open, sock.ReadyState())

			// All four registrations and send must work before any
			// event has fired.
			for _, kind := range []EventKind{EventOpen, EventMessage, EventError, EventClose} {
				sock.On(kind, func(Event) {})
			}
			require.NoError(t, sock.Send(Text("ping")))
		})
	}
}

func TestGetSocketEchoRoundTrip(t *testing.T) {
	srv := newEchoServer(t, nil)

	for _, variant := range []Variant{VariantEdgeSandbox, VariantProcessHost, VariantGeneric} {
		t.Run(variant.String(), func(t *testing.T) {
			sock, err := GetSocket(context.Background(), wsURL(srv), WithVariant(variant))
			require.NoError(t, err)
			defer sock.Close(0, "")

			msgs := make(chan Payload, 4)
			sock.On(EventMessage, func(ev Event) { msgs <- ev.Data })

			require.NoError(t, sock.Send(Text("hello")))
			require.Equal(t, Text("hello"), waitPayload(t, msgs))

			// Large enough to exercise fragment reassembly on the
			// emitter-bridged path.
			big := bytes.Repeat([]byte{7}, 10000)
			require.NoError(t, sock.Send(Binary(big)))

			got := waitPayload(t, msgs)
			require.Equal(t, PayloadBinary, got.Kind)
			require.Equal(t, big, got.Binary)
		})
	}
}

func waitPayload(t *testing.T, ch <-chan Payload) Payload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
		return Payload{}
	}
}

func TestHandshakeHeadersApplied(t *testing.T) {
	for _, variant := range []Variant{VariantEdgeSandbox, VariantProcessHost} {
		t.Run(variant.String(), func(t *testing.T) {
			headerCh := make(chan http.Header, 1)
			srv := newEchoServer(t, headerCh)

			headers := http.Header{}
			headers.Set("X-Api-Token", "sesame")

			sock, err := GetSocket(context.Background(), wsURL(srv),
				WithVariant(variant), WithHeaders(headers))
			require.NoError(t, err)
			defer sock.Close(0, "")

			got := <-headerCh
			require.Equal(t, "sesame", got.Get("X-Api-Token"))
		})
	}
}

func TestUpgradeRefusedCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	_, err := GetSocket(context.Background(), wsURL(srv), WithVariant(VariantEdgeSandbox))
	require.Error(t, err)

	var refused *UpgradeRefusedError
	require.ErrorAs(t, err, &refused)
	require.Equal(t, http.StatusForbidden, refused.Status)
	require.Equal(t, "Forbidden", refused.StatusText)
}

func TestUpgradeRefusedKeepsServerStatusText(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	// A raw listener, because net/http rewrites reason phrases.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := http.ReadRequest(bufio.NewReader(conn)); err != nil {
			return
		}
		_, _ = io.WriteString(conn, "HTTP/1.1 403 Access Denied\r\nContent-Length: 0\r\n\r\n")
	}()

	_, err = GetSocket(context.Background(), "ws://"+ln.Addr().String(),
		WithVariant(VariantEdgeSandbox))

	var refused *UpgradeRefusedError
	require.ErrorAs(t, err, &refused)
	require.Equal(t, http.StatusForbidden, refused.Status)
	require.Equal(t, "Access Denied", refused.StatusText)
}

func TestPeerInitiatedClose(t *testing.T) {
	upgrader := gws.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(1000, "server done"), time.Now().Add(time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	sock, err := GetSocket(context.Background(), wsURL(srv), WithVariant(VariantProcessHost))
	require.NoError(t, err)

	closed := make(chan Event, 1)
	sock.On(EventClose, func(ev Event) { closed <- ev })

	select {
	case ev := <-closed:
		require.Equal(t, 1000, ev.Code)
		require.Equal(t, "server done", ev.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("close event never delivered")
	}

	require.Eventually(t, func() bool {
		return sock.ReadyState() == Closed
	}, 5*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, sock.Send(Text("late")), ErrConnectionClosed)
	require.NoError(t, sock.Close(0, ""), "close after peer close is a no-op")
}

func TestGenericPathWarnsOnDroppedHeaders(t *testing.T) {
	srv := newEchoServer(t, nil)

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	headers := http.Header{}
	headers.Set("X-Api-Token", "sesame")

	sock, err := GetSocket(context.Background(), wsURL(srv),
		WithVariant(VariantGeneric), WithHeaders(headers), WithLogger(logger))
	require.NoError(t, err)
	defer sock.Close(0, "")

	warns := logs.FilterLevelExact(zap.WarnLevel)
	require.Equal(t, 1, warns.Len(), "exactly one warn-level diagnostic")

	debugs := logs.FilterLevelExact(zap.DebugLevel)
	require.GreaterOrEqual(t, debugs.Len(), 1, "variant selection is logged at debug")
}

func TestGenericPathNoWarnWithoutHeaders(t *testing.T) {
	srv := newEchoServer(t, nil)

	core, logs := observer.New(zap.WarnLevel)

	sock, err := GetSocket(context.Background(), wsURL(srv),
		WithVariant(VariantGeneric), WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer sock.Close(0, "")

	require.Equal(t, 0, logs.Len())
}

func TestReadyStateMonotonic(t *testing.T) {
	srv := newEchoServer(t, nil)

	for _, variant := range []Variant{VariantEdgeSandbox, VariantProcessHost, VariantGeneric} {
		t.Run(variant.String(), func(t *testing.T) {
			sock, err := GetSocket(context.Background(), wsURL(srv), WithVariant(variant))
			require.NoError(t, err)

			seen := []ReadyState{sock.ReadyState()}
			record := func() {
				s := sock.ReadyState()
				if s != seen[len(seen)-1] {
					seen = append(seen, s)
				}
			}

			require.NoError(t, sock.Close(1000, "done"))
			record()
			require.Eventually(t, func() bool {
				record()
				return sock.ReadyState() == Closed
			}, 5*time.Second, 10*time.Millisecond)

			require.Equal(t, Open, seen[0])
			for i := 1; i < len(seen); i++ {
				require.Greater(t, seen[i], seen[i-1],
					"readyState must only move forward: %v", seen)
			}
			require.Equal(t, Closed, seen[len(seen)-1])
		})
	}
}

func TestCloseEventDelivered(t *testing.T) {
	srv := newEchoServer(t, nil)

	sock, err := GetSocket(context.Background(), wsURL(srv), WithVariant(VariantProcessHost))
	require.NoError(t, err)

	closed := make(chan Event, 1)
	sock.On(EventClose, func(ev Event) { closed <- ev })

	require.NoError(t, sock.Close(1000, "bye"))

	select {
	case ev := <-closed:
		require.Equal(t, 1000, ev.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("close event never delivered")
	}
}
