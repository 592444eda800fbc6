package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// SinkHealth represents the health status of a delivery sink.
type SinkHealth struct {
	// Name is the sink identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful delivery.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed delivery.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the sink is considered healthy.
func (h *SinkHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the sink is in a degraded state (half-open).
func (h *SinkHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the sink is unhealthy (circuit open).
func (h *SinkHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks guarded sinks and their health.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]*registeredSink
}

type registeredSink struct {
	guard         *Guard
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates a new sink registry.
func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]*registeredSink),
	}
}

// Register adds a guard to the registry, replacing one with the same name.
func (r *Registry) Register(g *Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[g.Name()] = &registeredSink{guard: g}
}

// RecordSuccess records a successful delivery for a sink.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sinks[name]; ok {
		now := time.Now()
		s.lastSuccessAt = &now
	}
}

// RecordFailure records a failed delivery for a sink.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sinks[name]; ok {
		now := time.Now()
		s.lastFailureAt = &now
		if err != nil {
			s.lastError = err.Error()
		}
	}
}

// Health returns the health of a sink, or nil if it is not registered.
func (r *Registry) Health(name string) *SinkHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sinks[name]
	if !ok {
		return nil
	}
	return s.health(name)
}

// AllHealth returns the health of every registered sink ordered by name.
func (r *Registry) AllHealth() []*SinkHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*SinkHealth, 0, len(r.sinks))
	for name, s := range r.sinks {
		health = append(health, s.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

func (s *registeredSink) health(name string) *SinkHealth {
	return &SinkHealth{
		Name:          name,
		CircuitState:  s.guard.State(),
		Counts:        s.guard.Counts(),
		LastSuccessAt: s.lastSuccessAt,
		LastFailureAt: s.lastFailureAt,
		LastError:     s.lastError,
	}
}
