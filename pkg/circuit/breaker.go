package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents circuit breaker state
type State int

const (
	StateClosed   State = iota // requests pass through
	StateOpen                  // requests fail fast
	StateHalfOpen              // probing for recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config defines circuit breaker configuration
type Config struct {
	Threshold        int           // consecutive failures before opening
	Timeout          time.Duration // open period before probing
	SuccessThreshold int           // probe successes needed to close
	MaxHalfOpen      int           // concurrent probes allowed
}

func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
		MaxHalfOpen:      1,
	}
}

// Breaker guards calls to an unreliable dependency such as the SMTP relay
// or the Google key endpoint.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	halfOpenRequests int
	openedAt         time.Time
	config           Config
	logger           *zap.Logger
	name             string
	now              func() time.Time
}

func NewBreaker(name string, config Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Breaker{
		state:  StateClosed,
		config: config,
		logger: logger,
		name:   name,
		now:    time.Now,
	}
}

// Do runs fn unless the circuit is open. Cancellation of ctx is not counted
// against the dependency.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release()
		return err
	}
	b.Record(err)
	return err
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Allow checks if a request should be allowed
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			return ErrCircuitOpen
		}
		b.transitionTo(StateHalfOpen)
		b.halfOpenRequests = 1
		return nil

	case StateHalfOpen:
		if b.halfOpenRequests >= b.config.MaxHalfOpen {
			return ErrTooManyRequests
		}
		b.halfOpenRequests++
		return nil

	default:
		return nil
	}
}

// Record records the result of a request
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.halfOpenRequests > 0 {
		b.halfOpenRequests--
	}
	if err != nil {
		b.recordFailure()
	} else {
		b.recordSuccess()
	}
}

func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.halfOpenRequests > 0 {
		b.halfOpenRequests--
	}
}

// must hold lock
func (b *Breaker) recordFailure() {
	b.failures++
	b.successes = 0

	switch b.state {
	case StateClosed:
		if b.failures >= b.config.Threshold {
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		b.transitionTo(StateOpen)
	}
}

// must hold lock
func (b *Breaker) recordSuccess() {
	b.failures = 0

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	}
}

// must hold lock
func (b *Breaker) transitionTo(newState State) {
	oldState := b.state
	b.state = newState
	b.halfOpenRequests = 0
	b.successes = 0

	switch newState {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.failures = 0
	}

	b.logger.Warn("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
	)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Name() string { return b.name }

// Stats returns circuit breaker statistics
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"state":     b.state.String(),
		"failures":  b.failures,
		"threshold": b.config.Threshold,
		"timeout":   b.config.Timeout.String(),
	}
}

// Registry hands out one breaker per dependency name.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   Config
	logger   *zap.Logger
}

func NewRegistry(config Config, logger *zap.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   config,
		logger:   logger,
	}
}

func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, ok := r.breakers[name]; ok {
		return breaker
	}
	breaker := NewBreaker(name, r.config, r.logger)
	r.breakers[name] = breaker
	return breaker
}

// Stats returns stats for all breakers
func (r *Registry) Stats() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]interface{}, len(r.breakers))
	for name, breaker := range r.breakers {
		stats[name] = breaker.Stats()
	}
	return stats
}
