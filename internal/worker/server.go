package worker

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
	"redub/internal/transport"
)

// Handler processes one request envelope and returns the response envelope.
// The server fills in the response correlation id if the handler left it
// empty.
type Handler func(ctx context.Context, env transport.Envelope) (transport.Envelope, error)

// Server is the worker process core: it accepts push connections carrying
// request envelopes, dispatches each request to its type handler on its own
// goroutine, and broadcasts response and event envelopes to every subscriber
// connection.
type Server struct {
	pushAddr      string
	pubAddr       string
	maxFrameBytes int
	logger        *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[transport.Type]Handler

	subsMu sync.Mutex
	subs   map[net.Conn]struct{}

	started time.Time
}

// NewServer builds a server bound to the push and publish endpoints.
func NewServer(pushAddr, pubAddr string, maxFrameBytes int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		pushAddr:      pushAddr,
		pubAddr:       pubAddr,
		maxFrameBytes: maxFrameBytes,
		logger:        logger,
		handlers:      make(map[transport.Type]Handler),
		subs:          make(map[net.Conn]struct{}),
	}
}

// Handle registers the handler for a request type. Later registrations
// replace earlier ones.
func (s *Server) Handle(typ transport.Type, handler Handler) {
	s.handlersMu.Lock()
	s.handlers[typ] = handler
	s.handlersMu.Unlock()
}

// Uptime reports how long the server has been running.
func (s *Server) Uptime() time.Duration {
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

// Run serves until the context ends.
func (s *Server) Run(ctx context.Context) error {
	pushListener, err := transport.ListenEndpoint(s.pushAddr)
	if err != nil {
		return err
	}
	defer pushListener.Close()
	pubListener, err := transport.ListenEndpoint(s.pubAddr)
	if err != nil {
		return err
	}
	defer pubListener.Close()

	s.started = time.Now()
	s.logger.Info("worker serving",
		logging.String(logging.FieldComponent, "worker"),
		slog.String("push", s.pushAddr),
		slog.String("pub", s.pubAddr))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.acceptRequests(ctx, pushListener) })
	group.Go(func() error { return s.acceptSubscribers(ctx, pubListener) })
	group.Go(func() error {
		<-ctx.Done()
		pushListener.Close()
		pubListener.Close()
		s.closeSubscribers()
		return ctx.Err()
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) acceptRequests(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return services.Wrap(services.ErrTransport, "worker", "accept", "push listener", err)
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		env, err := transport.ReadEnvelope(conn, s.maxFrameBytes)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("push connection closed",
					logging.String(logging.FieldComponent, "worker"),
					logging.Error(err))
			}
			return
		}
		go s.dispatch(ctx, env)
	}
}

func (s *Server) dispatch(ctx context.Context, env transport.Envelope) {
	meta, err := env.Meta()
	if err != nil {
		s.logger.Warn("dropping malformed request",
			logging.String(logging.FieldComponent, "worker"),
			logging.Error(err))
		return
	}
	s.handlersMu.RLock()
	handler, ok := s.handlers[meta.Type]
	s.handlersMu.RUnlock()
	if !ok {
		s.publishError(meta, services.Wrap(services.ErrInvalidRequest, "worker", "dispatch",
			"no handler for type "+string(meta.Type), nil))
		return
	}

	ctx = services.WithCorrelationID(ctx, meta.CorrelationID)
	response, err := handler(ctx, env)
	if err != nil {
		s.logger.Warn("request failed",
			logging.String(logging.FieldComponent, "worker"),
			logging.String(logging.FieldCorrelationID, meta.CorrelationID),
			slog.String("type", string(meta.Type)),
			logging.Error(err))
		s.publishError(meta, err)
		return
	}
	s.Publish(response)
}

func (s *Server) publishError(meta transport.Meta, err error) {
	payload := struct {
		transport.Meta
		Error string `json:"error"`
	}{
		Meta:  transport.Meta{Type: transport.ResultType(meta.Type), CorrelationID: meta.CorrelationID},
		Error: err.Error(),
	}
	env, sealErr := transport.Seal(&payload)
	if sealErr != nil {
		return
	}
	s.Publish(env)
}

func (s *Server) acceptSubscribers(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return services.Wrap(services.ErrTransport, "worker", "accept", "pub listener", err)
		}
		s.subsMu.Lock()
		s.subs[conn] = struct{}{}
		count := len(s.subs)
		s.subsMu.Unlock()
		s.logger.Debug("subscriber connected",
			logging.String(logging.FieldComponent, "worker"),
			slog.Int("subscribers", count))
	}
}

// SubscriberCount reports how many subscriber connections are registered.
func (s *Server) SubscriberCount() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

// Publish broadcasts an envelope to every subscriber, dropping connections
// that fail to take the write.
func (s *Server) Publish(env transport.Envelope) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for conn := range s.subs {
		if err := transport.WriteEnvelope(conn, env); err != nil {
			conn.Close()
			delete(s.subs, conn)
		}
	}
}

func (s *Server) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for conn := range s.subs {
		conn.Close()
		delete(s.subs, conn)
	}
}
