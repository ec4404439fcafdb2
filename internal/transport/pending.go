package transport

import (
	"context"
	"sync"
	"time"

	"redub/internal/services"
)

type outcome struct {
	env Envelope
	err error
}

// PendingRequest is an in-flight request awaiting its response envelope.
type PendingRequest struct {
	CorrelationID string
	Type          Type
	CreatedAt     time.Time

	done chan outcome
}

// Wait blocks until the response arrives, the request is failed by the
// timeout sweep, or the context ends.
func (p *PendingRequest) Wait(ctx context.Context) (Envelope, error) {
	select {
	case <-ctx.Done():
		return Envelope{}, services.Wrap(services.ErrTimeout, "pending", "wait", "context ended before response", ctx.Err())
	case out := <-p.done:
		return out.env, out.err
	}
}

// pendingTable tracks in-flight requests by correlation id. Entries leave
// the table exactly once, whether resolved, failed, or swept.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*PendingRequest
	now     func() time.Time
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*PendingRequest), now: time.Now}
}

func (t *pendingTable) add(correlationID string, typ Type) *PendingRequest {
	req := &PendingRequest{
		CorrelationID: correlationID,
		Type:          typ,
		CreatedAt:     t.now(),
		done:          make(chan outcome, 1),
	}
	t.mu.Lock()
	t.entries[correlationID] = req
	t.mu.Unlock()
	return req
}

func (t *pendingTable) take(correlationID string) (*PendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.entries[correlationID]
	if ok {
		delete(t.entries, correlationID)
	}
	return req, ok
}

// resolve delivers a response envelope to its waiter. It reports false when
// no request with that correlation id is pending, which the router treats as
// an unsolicited event.
func (t *pendingTable) resolve(correlationID string, env Envelope) bool {
	req, ok := t.take(correlationID)
	if !ok {
		return false
	}
	req.done <- outcome{env: env}
	return true
}

func (t *pendingTable) fail(correlationID string, err error) bool {
	req, ok := t.take(correlationID)
	if !ok {
		return false
	}
	req.done <- outcome{err: err}
	return true
}

// sweep times out every request older than maxAge and returns how many were
// failed.
func (t *pendingTable) sweep(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)
	t.mu.Lock()
	var expired []*PendingRequest
	for id, req := range t.entries {
		if req.CreatedAt.Before(cutoff) {
			expired = append(expired, req)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()
	for _, req := range expired {
		req.done <- outcome{err: services.Wrap(services.ErrTimeout, "pending", "sweep",
			"no response within deadline for "+string(req.Type)+" request", nil)}
	}
	return len(expired)
}

// failAll drains the table, failing every waiter with err. Used on shutdown.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*PendingRequest)
	t.mu.Unlock()
	for _, req := range entries {
		req.done <- outcome{err: err}
	}
}

func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
