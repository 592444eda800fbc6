// Package handler provides HTTP handlers for the Tripwise API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// DependencyCheck probes one backing service.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ActiveCounter reports how many journeys are being tracked.
type ActiveCounter interface {
	ActiveCount() int
}

// OpsConfig holds dependencies for the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Checks    []DependencyCheck
	Sinks     *resilience.Registry
	Tracker   ActiveCounter
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []DependencyCheck
	sinks     *resilience.Registry
	tracker   ActiveCounter
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		checks:    cfg.Checks,
		sinks:     cfg.Sinks,
		tracker:   cfg.Tracker,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - dependency checks.
// Responds 503 when any dependency fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	status := http.StatusOK

	details := make(map[string]any, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}
	if len(details) > 0 {
		health.Details = details
	}

	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and sink status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.runChecks(r.Context()),
		Sinks:      h.sinkStatuses(),
	}
	if h.tracker != nil {
		status.ActiveJourneys = h.tracker.ActiveCount()
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}
	if status.Status == models.HealthStatusOK {
		for _, s := range status.Sinks {
			if s.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.Check(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			msg := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &msg
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) sinkStatuses() []models.SinkStatus {
	if h.sinks == nil {
		return []models.SinkStatus{}
	}

	all := h.sinks.AllHealth()
	out := make([]models.SinkStatus, 0, len(all))
	for _, sh := range all {
		s := models.SinkStatus{
			Name:          sh.Name,
			Status:        models.HealthStatusOK,
			Breaker:       sh.CircuitState.String(),
			LastSuccessAt: models.TimestampPtr(sh.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(sh.LastFailureAt),
		}
		switch {
		case sh.IsUnhealthy():
			s.Status = models.HealthStatusFail
		case sh.IsDegraded():
			s.Status = models.HealthStatusDegraded
		}
		if sh.LastError != "" {
			msg := sh.LastError
			s.Message = &msg
		}
		out = append(out, s)
	}
	return out
}
