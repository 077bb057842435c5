package cli

import (
	"fmt"
	"time"

	"github.com/stagehand-io/stagehand/internal/engine"
	"github.com/stagehand-io/stagehand/internal/ir"
)

// renderRunEvent prints deploy progress as it happens.
func renderRunEvent(ev engine.RunEvent) {
	switch ev.Status {
	case "started":
		fmt.Printf("  [stage %d] %s: provisioning...\n", ev.Stage, ev.ResourceID)
	case "completed":
		fmt.Printf("  [stage %d] %s: done (%s)\n", ev.Stage, ev.ResourceID, ev.Duration.Round(time.Millisecond))
	case "failed":
		fmt.Printf("  [stage %d] %s: FAILED: %v\n", ev.Stage, ev.ResourceID, ev.Err)
	case "skipped":
		fmt.Printf("  [stage %d] %s: skipped\n", ev.Stage, ev.ResourceID)
	}
}

// renderSummary prints the terminal status counts and per-resource health.
func renderSummary(handles []*ir.ResourceHandle, health []*ir.HealthRecord) {
	counts := make(map[ir.HandleStatus]int)
	for _, h := range handles {
		counts[h.Status]++
	}
	fmt.Printf("\nResources: %d created, %d already existed, %d failed, %d skipped\n",
		counts[ir.StatusCreated], counts[ir.StatusAlreadyExists],
		counts[ir.StatusFailed], counts[ir.StatusSkipped])

	for _, rec := range health {
		fmt.Printf("  %s: %s (attempts: %d)\n", rec.ResourceID, rec.State, rec.Attempts)
	}
}
