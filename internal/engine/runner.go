package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/logging"
	"github.com/stagehand-io/stagehand/internal/provider"
)

// Policy decides pipeline continuation after a stage containing failures.
type Policy int

const (
	// FailFast aborts the plan once any resource in a stage fails; later
	// stages are marked Skipped.
	FailFast Policy = iota
	// BestEffort continues to later stages, skipping only resources whose
	// transitive dependencies failed or were skipped.
	BestEffort
)

// ParsePolicy maps the CLI/config spelling to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "failfast":
		return FailFast, nil
	case "besteffort":
		return BestEffort, nil
	}
	return FailFast, fmt.Errorf("unknown failure policy: %q", s)
}

// RunEvent is a progress event emitted while executing a plan.
type RunEvent struct {
	ResourceID string
	Stage      int
	Status     string // "started", "completed", "failed", "skipped"
	Duration   time.Duration
	Err        error
}

// RunCallback receives progress events if set.
type RunCallback func(event RunEvent)

// Runner executes a deployment plan stage by stage: provisioners within a
// stage run concurrently, stages run sequentially. Stage N starts only after
// every resource in stage N-1 reached a terminal status.
type Runner struct {
	registry *provider.Registry

	Policy     Policy
	SkipStages []int // 1-based stage numbers supplied by the trigger
	Callback   RunCallback
}

func NewRunner(registry *provider.Registry) *Runner {
	return &Runner{registry: registry}
}

// Run provisions every resource of the plan and returns a handle per
// descriptor, in plan order. The returned error aggregates per-resource
// failures; handles always reflect the true terminal state of every
// resource, including failures and skips.
func (r *Runner) Run(ctx context.Context, plan *ir.DeploymentPlan) ([]*ir.ResourceHandle, error) {
	handles := make(map[string]*ir.ResourceHandle, plan.Size())
	var mu sync.Mutex

	skip := make(map[int]bool, len(r.SkipStages))
	for _, n := range r.SkipStages {
		skip[n] = true
	}

	emit := func(event RunEvent) {
		if r.Callback != nil {
			r.Callback(event)
		}
	}

	var errs []error
	aborted := false

	for i, stage := range plan.Stages {
		stageNum := i + 1

		if aborted || ctx.Err() != nil {
			r.markSkipped(stage, stageNum, handles, &mu, emit)
			continue
		}
		if skip[stageNum] {
			logging.Info("skipping stage", "stage", stageNum, "resources", len(stage))
			r.markSkipped(stage, stageNum, handles, &mu, emit)
			continue
		}

		logging.Debug("running stage", "stage", stageNum, "resources", len(stage))

		// Stage membership already guarantees dependency-safety, so the
		// stage size bounds concurrency.
		g := new(errgroup.Group)
		g.SetLimit(len(stage))

		for _, desc := range stage {
			desc := desc
			// Dependency outcomes are fully decided by earlier stages.
			mu.Lock()
			blocked := blockedOn(desc, handles)
			mu.Unlock()
			if blocked != "" {
				h := &ir.ResourceHandle{
					DescriptorID: desc.ID,
					Status:       ir.StatusSkipped,
					Error:        fmt.Sprintf("dependency %s did not succeed", blocked),
				}
				mu.Lock()
				handles[desc.ID] = h
				mu.Unlock()
				emit(RunEvent{ResourceID: desc.ID, Stage: stageNum, Status: "skipped"})
				continue
			}

			g.Go(func() error {
				start := time.Now()
				emit(RunEvent{ResourceID: desc.ID, Stage: stageNum, Status: "started"})

				h := r.provision(ctx, desc, handles, &mu)

				mu.Lock()
				handles[desc.ID] = h
				mu.Unlock()

				if h.Status == ir.StatusFailed {
					emit(RunEvent{ResourceID: desc.ID, Stage: stageNum, Status: "failed", Duration: time.Since(start), Err: errors.New(h.Error)})
					logging.Error("provisioning failed", "resource", desc.ID, "kind", desc.Kind, "error", h.Error)
				} else {
					emit(RunEvent{ResourceID: desc.ID, Stage: stageNum, Status: "completed", Duration: time.Since(start)})
					logging.Info("provisioned", "resource", desc.ID, "kind", desc.Kind, "status", h.Status)
				}
				return nil
			})
		}

		_ = g.Wait()

		mu.Lock()
		for _, desc := range stage {
			if h := handles[desc.ID]; h != nil && h.Status == ir.StatusFailed {
				errs = append(errs, fmt.Errorf("%s: %s", desc.ID, h.Error))
				if r.Policy == FailFast {
					aborted = true
				}
			}
		}
		mu.Unlock()

		if ctx.Err() != nil {
			aborted = true
		}
	}

	out := make([]*ir.ResourceHandle, 0, plan.Size())
	for _, desc := range plan.Descriptors() {
		out = append(out, handles[desc.ID])
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("%d resource(s) failed: %w", len(errs), errors.Join(errs...))
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("run cancelled: %w", err)
	}
	return out, nil
}

// provision looks up the provisioner for the descriptor's kind and invokes
// it under the kind's retry policy, with a read-only snapshot of the
// dependency handles. Never panics or raises: any error becomes a Failed
// handle.
func (r *Runner) provision(ctx context.Context, desc *ir.ResourceDescriptor, handles map[string]*ir.ResourceHandle, mu *sync.Mutex) *ir.ResourceHandle {
	prov, err := r.registry.Get(desc.Kind)
	if err != nil {
		return failedHandle(desc, err)
	}

	mu.Lock()
	deps := make(map[string]*ir.ResourceHandle, len(desc.DependsOn))
	for _, dep := range desc.DependsOn {
		if h, ok := handles[dep]; ok {
			copied := *h
			deps[dep] = &copied
		}
	}
	mu.Unlock()

	var h *ir.ResourceHandle
	err = RetryWithBackoff(ctx, policyForKind(desc.Kind), func() error {
		var provErr error
		h, provErr = prov.Provision(ctx, desc, deps)
		return provErr
	}, IsTransientError)
	if err != nil {
		return failedHandle(desc, err)
	}
	if h == nil {
		return failedHandle(desc, fmt.Errorf("provisioner for kind %s returned no handle", desc.Kind))
	}
	return h
}

// policyForKind parameterizes retry limits only where they genuinely
// differ: quota-constrained GPU compute clears slowly.
func policyForKind(kind string) *RetryPolicy {
	if strings.HasSuffix(kind, ".compute") || strings.HasSuffix(kind, ".autoscaling") {
		return GPURetryPolicy()
	}
	return DefaultRetryPolicy()
}

func (r *Runner) markSkipped(stage ir.Stage, stageNum int, handles map[string]*ir.ResourceHandle, mu *sync.Mutex, emit func(RunEvent)) {
	mu.Lock()
	for _, desc := range stage {
		if _, done := handles[desc.ID]; done {
			continue
		}
		handles[desc.ID] = &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusSkipped,
		}
	}
	mu.Unlock()
	for _, desc := range stage {
		emit(RunEvent{ResourceID: desc.ID, Stage: stageNum, Status: "skipped"})
	}
}

// blockedOn returns the id of the first dependency whose handle is missing
// or not live. Skips propagate transitively through this check since a
// skipped dependency is itself not live.
func blockedOn(desc *ir.ResourceDescriptor, handles map[string]*ir.ResourceHandle) string {
	for _, dep := range desc.DependsOn {
		h, ok := handles[dep]
		if !ok || !h.Live() {
			return dep
		}
	}
	return ""
}

func failedHandle(desc *ir.ResourceDescriptor, err error) *ir.ResourceHandle {
	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusFailed,
		Error:        err.Error(),
	}
}
