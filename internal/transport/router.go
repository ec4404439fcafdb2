package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"redub/internal/logging"
	"redub/internal/services"
)

// receiver is the inbound half of a ConnectionManager.
type receiver interface {
	Receive() (Envelope, error)
}

// EventHandler consumes an unsolicited broadcast envelope.
type EventHandler func(Envelope)

// Router drains the subscribe connection. Envelopes whose correlation id
// matches a pending request resolve that request; everything else fans out
// to the event subscribers for its type. A background sweep times out
// pending requests that never got a response.
type Router struct {
	conn           receiver
	pending        *pendingTable
	requestTimeout time.Duration
	sweepInterval  time.Duration
	logger         *slog.Logger

	subsMu sync.RWMutex
	subs   map[Type][]EventHandler
}

// NewRouter builds a router sharing the dispatcher's pending table.
func NewRouter(conn receiver, dispatcher *Dispatcher, requestTimeout, sweepInterval time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Second
	}
	return &Router{
		conn:           conn,
		pending:        dispatcher.pending,
		requestTimeout: requestTimeout,
		sweepInterval:  sweepInterval,
		logger:         logger,
		subs:           make(map[Type][]EventHandler),
	}
}

// Subscribe registers a handler for unsolicited envelopes of the given
// type. Handlers run on the router goroutine and must not block.
func (r *Router) Subscribe(typ Type, handler EventHandler) {
	r.subsMu.Lock()
	r.subs[typ] = append(r.subs[typ], handler)
	r.subsMu.Unlock()
}

// Run drains envelopes and sweeps timeouts until the context ends or the
// connection drops. Pending requests are failed on exit so no waiter hangs.
func (r *Router) Run(ctx context.Context) error {
	defer r.pending.failAll(services.Wrap(services.ErrTransport, "router", "shutdown", "connection closed", nil))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return r.drain(ctx) })
	group.Go(func() error { return r.sweepLoop(ctx) })
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Router) drain(ctx context.Context) error {
	for {
		env, err := r.conn.Receive()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return err
		}
		r.route(env)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (r *Router) route(env Envelope) {
	meta, err := env.Meta()
	if err != nil {
		r.logger.Warn("dropping malformed envelope",
			logging.String(logging.FieldComponent, "router"),
			logging.Error(err))
		return
	}
	if meta.CorrelationID != "" && r.pending.resolve(meta.CorrelationID, env) {
		return
	}
	r.subsMu.RLock()
	handlers := r.subs[meta.Type]
	r.subsMu.RUnlock()
	if len(handlers) == 0 {
		r.logger.Debug("no subscriber for event",
			logging.String(logging.FieldComponent, "router"),
			slog.String("type", string(meta.Type)),
			logging.String(logging.FieldCorrelationID, meta.CorrelationID))
		return
	}
	for _, handler := range handlers {
		handler(env)
	}
}

func (r *Router) sweepLoop(ctx context.Context) error {
	if r.requestTimeout <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if expired := r.pending.sweep(r.requestTimeout); expired > 0 {
				r.logger.Warn("timed out pending requests",
					logging.String(logging.FieldComponent, "router"),
					slog.Int("expired", expired),
					slog.Duration("deadline", r.requestTimeout))
			}
		}
	}
}
