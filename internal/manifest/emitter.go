// Package manifest renders the terminal outcome of a deploy run as a
// write-once JSON document.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// Redactor rewrites strings so secret material never reaches the manifest.
type Redactor interface {
	Redact(s string) string
}

// Emit assembles the manifest from the run outcome. Every string field of
// every handle passes through the redactor, so a provisioner that leaked a
// secret value into an endpoint or error message cannot leak it to disk.
// The inputs are not mutated.
func Emit(plan *ir.DeploymentPlan, handles []*ir.ResourceHandle, health []*ir.HealthRecord, red Redactor) *ir.DeploymentManifest {
	m := &ir.DeploymentManifest{
		PlanID:      plan.ID,
		GeneratedAt: time.Now().UTC(),
		Resources:   make([]*ir.ResourceHandle, 0, len(handles)),
		Health:      health,
	}

	for _, h := range handles {
		copied := *h
		if red != nil {
			copied.ResourceID = red.Redact(copied.ResourceID)
			copied.Endpoint = red.Redact(copied.Endpoint)
			copied.Error = red.Redact(copied.Error)
		}
		m.Resources = append(m.Resources, &copied)
	}

	return m
}

// Writer persists manifests. Manifests are immutable records of a run, so
// writing refuses to overwrite an existing file.
type Writer struct {
	Path string
}

// Write marshals the manifest and creates the file exclusively. An
// existing file at the path is an error, never silently replaced.
func (w *Writer) Write(m *ir.DeploymentManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	f, err := os.OpenFile(w.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("manifest %s already exists: refusing to overwrite", w.Path)
		}
		return fmt.Errorf("failed to create manifest %s: %w", w.Path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", w.Path, err)
	}
	return nil
}
