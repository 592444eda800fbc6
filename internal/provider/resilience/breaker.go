// Package resilience guards calls to external delivery sinks with circuit
// breakers and bounded retries.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig decides when a sink's breaker opens and how it recovers.
// Zero fields take the DefaultBreakerConfig value.
type BreakerConfig struct {
	// MinRequests is the number of calls in the current window before the
	// failure ratio is considered.
	MinRequests uint32

	// FailureRatio opens the breaker once reached after MinRequests calls.
	FailureRatio float64

	// ConsecutiveFailures opens the breaker regardless of volume. A push
	// sink that fails this many times in a row is down.
	ConsecutiveFailures uint32

	// Window clears the counts periodically while closed. Zero keeps counts
	// until the breaker changes state.
	Window time.Duration

	// Cooldown is how long the breaker stays open before a probe.
	Cooldown time.Duration

	// Probes is the number of calls allowed through while half-open.
	Probes uint32

	// OnStateChange is called on every transition.
	OnStateChange func(sink string, from, to gobreaker.State)
}

// DefaultBreakerConfig opens after half of at least five calls fail, or
// after ten consecutive failures, and probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:         5,
		FailureRatio:        0.5,
		ConsecutiveFailures: 10,
		Cooldown:            30 * time.Second,
		Probes:              1,
	}
}

// readyToTrip returns the gobreaker trip predicate for c.
func (c BreakerConfig) readyToTrip() func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
			return true
		}
		if counts.Requests < c.MinRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = d.FailureRatio
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.Probes == 0 {
		c.Probes = d.Probes
	}
	return c
}

// newBreaker builds the breaker for sink. Permanent errors and successes
// both count as successes, so a bad device token never opens the breaker.
func newBreaker(sink string, cfg BreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	cfg = cfg.withDefaults()
	settings := gobreaker.Settings{
		Name:        sink,
		MaxRequests: cfg.Probes,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: cfg.readyToTrip(),
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}
	return gobreaker.NewCircuitBreaker[struct{}](settings)
}
