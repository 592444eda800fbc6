package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus is the authenticated operator view: dependency checks, sink
// health and the number of journeys currently being tracked.
type SystemStatus struct {
	Status         HealthStatus      `json:"status"`
	Time           Timestamp         `json:"time"`
	ActiveJourneys int               `json:"activeJourneys"`
	Subsystems     []SubsystemStatus `json:"subsystems"`
	Sinks          []SinkStatus      `json:"sinks"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// SinkStatus reports a push or broadcast sink. Breaker is the circuit
// breaker state: "closed", "half-open" or "open".
type SinkStatus struct {
	Name          string       `json:"name"`
	Status        HealthStatus `json:"status"`
	Breaker       string       `json:"breaker"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
