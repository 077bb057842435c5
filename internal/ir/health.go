package ir

import "time"

// HealthState classifies a resource after verification. Healthy and
// Unreachable are terminal; Unknown means no probe was declared; Degraded
// means the target responded but not with a success status.
type HealthState string

const (
	HealthHealthy     HealthState = "Healthy"
	HealthDegraded    HealthState = "Degraded"
	HealthUnreachable HealthState = "Unreachable"
	HealthUnknown     HealthState = "Unknown"
)

// HealthRecord is appended by the verifier; handles are never mutated.
type HealthRecord struct {
	ResourceID    string      `json:"resourceId"`
	State         HealthState `json:"state"`
	LastCheckedAt time.Time   `json:"lastCheckedAt"`
	Attempts      int         `json:"attempts"`
}
