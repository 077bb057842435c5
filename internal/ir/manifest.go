package ir

import "time"

// DeploymentManifest is the final snapshot of a run: every attempted
// resource's terminal state plus verification results. Write-once output
// artifact; secret fields are always references, never raw values.
type DeploymentManifest struct {
	PlanID      string            `json:"planId"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Resources   []*ResourceHandle `json:"resources"`
	Health      []*HealthRecord   `json:"health"`
}
