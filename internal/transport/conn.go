package transport

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"redub/internal/services"
)

// ConnectionManager owns the socket pair used to talk to offload workers:
// one push connection that carries requests out and one subscribe connection
// that delivers responses and broadcast events back. Sends are serialized so
// multipart envelopes stay contiguous on the wire; Close is idempotent and
// unblocks any pending Receive.
type ConnectionManager struct {
	push net.Conn
	sub  net.Conn

	maxFrameBytes int

	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// DialOption adjusts connection behavior.
type DialOption func(*dialConfig)

type dialConfig struct {
	maxFrameBytes int
	timeout       time.Duration
}

// WithMaxFrameBytes caps the size of any single inbound frame.
func WithMaxFrameBytes(limit int) DialOption {
	return func(c *dialConfig) { c.maxFrameBytes = limit }
}

// WithDialTimeout bounds how long connection establishment may take.
func WithDialTimeout(timeout time.Duration) DialOption {
	return func(c *dialConfig) { c.timeout = timeout }
}

// Dial connects the push and subscribe endpoints. Addresses use the
// scheme://target form, e.g. tcp://127.0.0.1:5755 or unix:///run/redub.sock.
func Dial(pushAddr, subAddr string, opts ...DialOption) (*ConnectionManager, error) {
	cfg := dialConfig{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	push, err := dialEndpoint(pushAddr, cfg.timeout)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "connection", "dial", fmt.Sprintf("push endpoint %s", pushAddr), err)
	}
	sub, err := dialEndpoint(subAddr, cfg.timeout)
	if err != nil {
		push.Close()
		return nil, services.Wrap(services.ErrTransport, "connection", "dial", fmt.Sprintf("subscribe endpoint %s", subAddr), err)
	}
	return NewConnectionManager(push, sub, cfg.maxFrameBytes), nil
}

// NewConnectionManager wraps already-established connections. The subscribe
// connection may be nil for send-only use.
func NewConnectionManager(push, sub net.Conn, maxFrameBytes int) *ConnectionManager {
	return &ConnectionManager{push: push, sub: sub, maxFrameBytes: maxFrameBytes}
}

func dialEndpoint(addr string, timeout time.Duration) (net.Conn, error) {
	network, target, err := splitEndpoint(addr)
	if err != nil {
		return nil, err
	}
	return net.DialTimeout(network, target, timeout)
}

// ListenEndpoint opens a listener on a scheme://target endpoint, the
// server-side counterpart of Dial.
func ListenEndpoint(addr string) (net.Listener, error) {
	network, target, err := splitEndpoint(addr)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "connection", "listen", "parse endpoint", err)
	}
	listener, err := net.Listen(network, target)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "connection", "listen", "bind "+addr, err)
	}
	return listener, nil
}

func splitEndpoint(addr string) (network, target string, err error) {
	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok {
		return "", "", fmt.Errorf("endpoint %q missing scheme", addr)
	}
	switch scheme {
	case "tcp":
		return "tcp", rest, nil
	case "unix", "ipc":
		return "unix", rest, nil
	default:
		return "", "", fmt.Errorf("unsupported endpoint scheme %q", scheme)
	}
}

// Send writes a header-only envelope on the push connection.
func (c *ConnectionManager) Send(env Envelope) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return writeEnvelope(c.push, env)
}

// Receive blocks until the next envelope arrives on the subscribe
// connection. It returns a transport error once the connection closes.
func (c *ConnectionManager) Receive() (Envelope, error) {
	if c.sub == nil {
		return Envelope{}, services.Wrap(services.ErrTransport, "connection", "receive", "no subscribe connection", nil)
	}
	return readEnvelope(c.sub, c.maxFrameBytes)
}

// Close tears down both connections. Safe to call more than once.
func (c *ConnectionManager) Close() error {
	c.closeOnce.Do(func() {
		if c.push != nil {
			c.closeErr = c.push.Close()
		}
		if c.sub != nil {
			if err := c.sub.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}
