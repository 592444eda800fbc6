package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for guarded operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Guard.Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// GuardConfig holds configuration for a Guard.
type GuardConfig struct {
	// Name identifies the sink for logging and health reporting.
	Name string

	// MaxRetries is the maximum number of retry attempts.
	// Default: 2
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 2 seconds
	MaxInterval time.Duration

	// Breaker configures when the sink's circuit opens.
	Breaker BreakerConfig

	// Registry, when set, receives the guard and its outcomes.
	Registry *Registry

	// Recorder, when set, observes the duration and outcome of each Do.
	Recorder Recorder
}

// Recorder observes guarded calls.
type Recorder interface {
	RecordRequest(sink string, duration time.Duration, err error)
}

// DefaultGuardConfig returns sensible defaults for a sink guard.
func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		Name:            name,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         DefaultBreakerConfig(),
	}
}

// Guard runs operations against one external sink through a circuit
// breaker, retrying transient failures with exponential backoff.
type Guard struct {
	name     string
	breaker  *gobreaker.CircuitBreaker[struct{}]
	config   GuardConfig
	registry *Registry
}

// NewGuard creates a new Guard and registers it when a registry is configured.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	g := &Guard{
		name:     cfg.Name,
		breaker:  newBreaker(cfg.Name, cfg.Breaker),
		config:   cfg,
		registry: cfg.Registry,
	}
	if g.registry != nil {
		g.registry.Register(g)
	}
	return g
}

// Name returns the sink name.
func (g *Guard) Name() string {
	return g.name
}

// Do runs op until it succeeds, returns a permanent error, retries are
// exhausted, or ctx is done. Returns ErrCircuitOpen without calling op when
// the breaker is open.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.config.InitialInterval
	bo.MaxInterval = g.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, g.config.MaxRetries), ctx)

	operation := func() error {
		_, err := g.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, op(ctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	start := time.Now()
	err := backoff.Retry(operation, policy)
	if g.config.Recorder != nil {
		g.config.Recorder.RecordRequest(g.name, time.Since(start), err)
	}
	if g.registry != nil {
		if err != nil {
			g.registry.RecordFailure(g.name, err)
		} else {
			g.registry.RecordSuccess(g.name)
		}
	}
	return err
}

// State returns the current state of the circuit breaker.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// Counts returns the current counts of the circuit breaker.
func (g *Guard) Counts() gobreaker.Counts {
	return g.breaker.Counts()
}
