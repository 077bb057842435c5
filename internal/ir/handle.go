package ir

import "github.com/stagehand-io/stagehand/internal/secrets"

// HandleStatus is the terminal provisioning outcome for one resource.
type HandleStatus string

const (
	StatusCreated       HandleStatus = "Created"
	StatusAlreadyExists HandleStatus = "AlreadyExists"
	StatusFailed        HandleStatus = "Failed"
	StatusSkipped       HandleStatus = "Skipped"
)

// ResourceHandle is the result of provisioning a descriptor. Handles are
// created exactly once per descriptor per run by the stage runner and read
// by later stages needing dependency outputs.
type ResourceHandle struct {
	DescriptorID string                 `json:"descriptorId"`
	Status       HandleStatus           `json:"status"`
	ResourceID   string                 `json:"resourceId,omitempty"`
	Endpoint     string                 `json:"endpoint,omitempty"`
	SecretRefs   map[string]secrets.Ref `json:"secretRefs,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Live reports whether the handle represents an existing physical resource.
func (h *ResourceHandle) Live() bool {
	return h.Status == StatusCreated || h.Status == StatusAlreadyExists
}
