package unisock

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solviumdream/unisock.go/diag"
	"github.com/solviumdream/unisock.go/unisock/transport"
)

type config struct {
	headers          http.Header
	logger           *zap.Logger
	variant          Variant
	variantSet       bool
	handshakeTimeout time.Duration
}

// Option configures socket construction.
type Option func(*config)

// WithHeaders sets custom headers applied during the connection
// handshake. Only hosts with handshake control honor them; on a
// generic host they are dropped with a warning.
func WithHeaders(headers http.Header) Option {
	return func(c *config) {
		c.headers = headers
	}
}

// WithLogger sets the diagnostic logger for this construction. The
// default is the package-wide diag logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithVariant pins the runtime variant instead of detecting it,
// making each construction path exercisable on any host.
func WithVariant(v Variant) Option {
	return func(c *config) {
		c.variant = v
		c.variantSet = true
	}
}

// WithHandshakeTimeout bounds the handshake on hosts whose dialer
// supports it. Callers needing a hard bound across all paths should
// cancel ctx themselves.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *config) {
		c.handshakeTimeout = d
	}
}

// GetSocket connects to address and returns the unified socket for
// whichever construction path the host supports. It may block until
// the handshake completes; ctx cancels the attempt. Dial failures are
// returned as-is, except an edge-path refusal, which is reported as
// an *UpgradeRefusedError carrying the response status.
func GetSocket(ctx context.Context, address string, opts ...Option) (Socket, error) {
	cfg := config{logger: diag.Logger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	variant := cfg.variant
	if !cfg.variantSet {
		variant = Detect()
	}

	cfg.logger.Debug("socket variant selected",
		zap.Stringer("variant", variant),
		zap.String("address", address))

	switch variant {
	case VariantEdgeSandbox:
		conn, resp, err := transport.DialPaired(ctx, address, cfg.headers)
		if err != nil {
			if resp != nil {
				return nil, &UpgradeRefusedError{
					Status:     resp.StatusCode,
					StatusText: statusTextFrom(resp),
				}
			}
			return nil, err
		}
		s := newAdapterSocket(conn, nil, false)
		conn.Start()
		return s, nil

	case VariantProcessHost:
		conn, err := transport.DialHost(ctx, address, cfg.headers, cfg.handshakeTimeout)
		if err != nil {
			return nil, err
		}
		return wireEmitter(conn), nil

	default:
		if len(cfg.headers) > 0 {
			cfg.logger.Warn("handshake headers unsupported on this host, dropping",
				zap.Int("headers", len(cfg.headers)),
				zap.String("address", address))
		}
		conn, err := transport.DialFallback(address)
		if err != nil {
			return nil, err
		}
		s := newAdapterSocket(conn, nil, false)
		conn.Start()
		return s, nil
	}
}

// statusTextFrom recovers the reason phrase the server actually sent,
// falling back to the standard text when the status line carries none.
func statusTextFrom(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// wireEmitter wraps an emitter-style connection, resolving once
// whether it handles standard listener registration itself. Only the
// manually wired path runs message shapes through normalization; a
// connection with native registration already yields canonical
// shapes.
func wireEmitter(conn transport.Conn) Socket {
	std, _ := conn.(ListenerConn)
	s := newAdapterSocket(conn, std, std == nil)
	conn.Start()
	return s
}
