package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is one authenticated WSS connection. All writes, control frames
// included, go through writeMu. Only one goroutine may read.
type wsConn struct {
	ws           *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

// dialParams carries everything dial needs for one cycle.
type dialParams struct {
	addr       string // host:port
	authHeader string
	origin     string
	handshake  time.Duration
	readLimit  int64
	write      time.Duration
	onPhase    func(Phase)
}

// dial resolves, connects, performs the TLS and WebSocket handshakes and
// returns the open connection. Certificate verification is disabled for the
// loopback endpoint.
func dial(ctx context.Context, p dialParams, logger *slog.Logger) (*wsConn, error) {
	phase := p.onPhase
	if phase == nil {
		phase = func(Phase) {}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: p.handshake,
		NetDialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			phase(PhaseResolving)
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.DefaultResolver.LookupHost(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", host, err)
			}
			if len(ips) == 0 {
				return nil, fmt.Errorf("resolve %s: no addresses", host)
			}

			phase(PhaseConnecting)
			var nd net.Dialer
			raw, err := nd.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
			if err != nil {
				return nil, err
			}

			phase(PhaseTLSHandshake)
			tc := tls.Client(raw, &tls.Config{
				ServerName:         host,
				InsecureSkipVerify: true, //nolint:gosec // loopback endpoint with a self-signed certificate
			})
			if err := tc.HandshakeContext(ctx); err != nil {
				raw.Close()
				return nil, fmt.Errorf("tls handshake: %w", err)
			}

			phase(PhaseWSHandshake)
			return tc, nil
		},
	}

	header := http.Header{}
	header.Set("Authorization", p.authHeader)
	header.Set("Origin", p.origin)

	ws, resp, err := dialer.DialContext(ctx, "wss://"+p.addr+"/", header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, err
	}

	if p.readLimit > 0 {
		ws.SetReadLimit(p.readLimit)
	}

	return &wsConn{
		ws:           ws,
		logger:       logger,
		writeTimeout: p.write,
	}, nil
}

// WriteText writes one text frame.
func (c *wsConn) WriteText(data []byte) error {
	if c.closed.Load() {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// WritePing sends a ping control frame.
func (c *wsConn) WritePing() error {
	if c.closed.Load() {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// ReadFrame blocks until the next data frame arrives.
func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// SetReadDeadline bounds the next reads. A zero t clears the deadline.
func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// Close sends a normal closure frame and releases the socket. It is safe to
// call more than once and from any goroutine; the outcome is logged.
func (c *wsConn) Close() error {
	c.writeMu.Lock()
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout),
	)
	c.writeMu.Unlock()

	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.ws.Close()
	})

	switch classifyCloseError(err) {
	case closeClean:
		c.logger.Debug("websocket closed")
	case closePeerTruncated:
		c.logger.Warn("websocket close: peer closed without close notify", "error", err)
	case closeAlreadyClosed:
		c.logger.Info("websocket close: already closed", "error", err)
	default:
		c.logger.Error("websocket close failed", "error", err)
	}
	return err
}

type closeOutcome int

const (
	closeClean closeOutcome = iota
	closePeerTruncated
	closeAlreadyClosed
	closeFailed
)

// classifyCloseError sorts a close failure into the outcomes we log at
// different levels.
func classifyCloseError(err error) closeOutcome {
	switch {
	case err == nil:
		return closeClean
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, net.ErrClosed):
		return closeAlreadyClosed
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return closePeerTruncated
	default:
		return closeFailed
	}
}
