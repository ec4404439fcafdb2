package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"redub/internal/logging"
	"redub/internal/services"
)

// BreakerState is the circuit breaker's position.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the retry executor and circuit breaker.
type BreakerConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// CallTimeout bounds each individual attempt; an expired attempt counts
	// as one failure against the window. Zero disables the bound.
	CallTimeout time.Duration

	// FailureThreshold is the failure rate over the sliding window that trips
	// the breaker open. MinSamples calls must complete before the rate is
	// considered meaningful.
	FailureThreshold float64
	WindowSize       int
	MinSamples       int
	Cooldown         time.Duration
}

func (c *BreakerConfig) normalize() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Second
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 2
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 0.5
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 20
	}
	if c.MinSamples <= 0 {
		c.MinSamples = min(5, c.WindowSize)
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
}

// Breaker wraps operations with retry-plus-backoff and a sliding-window
// circuit breaker. While open it fails fast with ErrCircuitOpen; after the
// cooldown exactly one trial call is admitted, and its outcome decides
// whether the circuit closes again.
type Breaker struct {
	cfg    BreakerConfig
	logger *slog.Logger

	mu            sync.Mutex
	state         BreakerState
	window        []bool // true = failure
	windowNext    int
	windowFilled  int
	openedAt      time.Time
	trialInFlight bool

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewBreaker builds a breaker from the given config, applying defaults to
// zero fields.
func NewBreaker(cfg BreakerConfig, logger *slog.Logger) *Breaker {
	cfg.normalize()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Breaker{
		cfg:    cfg,
		logger: logger,
		window: make([]bool, cfg.WindowSize),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State reports the breaker's current position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() BreakerState {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = StateHalfOpen
		b.trialInFlight = false
	}
	return b.state
}

// admit decides whether a call may proceed. In half-open state only a single
// trial call passes.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.stateLocked() {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return services.Wrap(services.ErrCircuitOpen, "breaker", "admit", "trial call already in flight", nil)
		}
		b.trialInFlight = true
		return nil
	default:
		return services.Wrap(services.ErrCircuitOpen, "breaker", "admit", "circuit open, failing fast", nil)
	}
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		if failed {
			b.trip()
			return
		}
		b.logger.Info("circuit closed after successful trial", logging.String(logging.FieldComponent, "breaker"))
		b.state = StateClosed
		b.resetWindow()
		return
	case StateOpen:
		return
	}
	b.window[b.windowNext] = failed
	b.windowNext = (b.windowNext + 1) % len(b.window)
	if b.windowFilled < len(b.window) {
		b.windowFilled++
	}
	if failed && b.windowFilled >= b.cfg.MinSamples && b.failureRate() >= b.cfg.FailureThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.logger.Warn("circuit opened",
		logging.String(logging.FieldComponent, "breaker"),
		slog.Float64("failure_rate", b.failureRate()),
		slog.Duration("cooldown", b.cfg.Cooldown))
	b.resetWindow()
}

func (b *Breaker) resetWindow() {
	for i := range b.window {
		b.window[i] = false
	}
	b.windowNext = 0
	b.windowFilled = 0
}

func (b *Breaker) failureRate() float64 {
	if b.windowFilled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.windowFilled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.windowFilled)
}

// Execute runs op with retry and backoff under circuit-breaker control.
// Terminal errors abort immediately; transient failures are retried up to
// MaxRetries attempts with exponentially growing delays capped at MaxDelay.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	delay := b.cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= b.cfg.MaxRetries; attempt++ {
		if err := b.admit(); err != nil {
			return err
		}
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if b.cfg.CallTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, b.cfg.CallTimeout)
		}
		err := op(attemptCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()
		if timedOut && ctx.Err() == nil {
			err = services.Wrap(services.ErrTimeout, "breaker", "call", "attempt deadline exceeded", err)
		}
		b.record(err != nil)
		if err == nil {
			return nil
		}
		lastErr = err
		if services.Terminal(err) || ctx.Err() != nil {
			return err
		}
		if attempt == b.cfg.MaxRetries {
			break
		}
		b.logger.Debug("retrying after failure",
			logging.String(logging.FieldComponent, "breaker"),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			logging.Error(err))
		if err := b.sleep(ctx, delay); err != nil {
			return services.Wrap(services.ErrTransport, "breaker", "retry", "canceled during backoff", err)
		}
		delay = nextDelay(delay, b.cfg.BackoffMultiplier, b.cfg.MaxDelay)
	}
	return lastErr
}

func nextDelay(current time.Duration, multiplier float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * multiplier)
	if next > max {
		return max
	}
	return next
}
