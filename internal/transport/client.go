package transport

import (
	"context"
	"log/slog"
	"time"

	"redub/internal/config"
)

// Client bundles the connection pair, breaker, dispatcher, and router into
// the single handle the rest of the daemon talks through.
type Client struct {
	Conn       *ConnectionManager
	Dispatcher *Dispatcher
	Router     *Router
}

// Connect dials the worker endpoints described by the transport config and
// assembles a ready-to-run client. Callers start Router.Run themselves and
// Close the client on shutdown.
func Connect(cfg config.Transport, logger *slog.Logger) (*Client, error) {
	conn, err := Dial(cfg.PushBind, cfg.PubBind,
		WithMaxFrameBytes(cfg.MaxFrameMB*1024*1024))
	if err != nil {
		return nil, err
	}
	breaker := NewBreaker(BreakerConfig{
		MaxRetries:        cfg.MaxRetries,
		InitialDelay:      time.Duration(cfg.InitialDelayMS) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		BackoffMultiplier: cfg.BackoffMultiplier,
		CallTimeout:       time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		FailureThreshold:  cfg.CircuitFailureThreshold,
		WindowSize:        cfg.CircuitWindowSize,
		Cooldown:          time.Duration(cfg.CircuitCooldownMS) * time.Millisecond,
	}, logger)
	dispatcher := NewDispatcher(conn, breaker, cfg.InlineAudioLimitBytes, logger)
	router := NewRouter(conn, dispatcher,
		time.Duration(cfg.RequestTimeoutMS)*time.Millisecond,
		time.Duration(cfg.SweepIntervalMS)*time.Millisecond,
		logger)
	return &Client{Conn: conn, Dispatcher: dispatcher, Router: router}, nil
}

// Run drains responses until the context ends.
func (c *Client) Run(ctx context.Context) error {
	return c.Router.Run(ctx)
}

// Close shuts the socket pair down, unblocking the router.
func (c *Client) Close() error {
	return c.Conn.Close()
}
