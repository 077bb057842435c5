package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/stagehand-io/stagehand/internal/ir"
)

// CycleError reports descriptors that can never reach in-degree zero.
// The plan is not partially usable; provisioning must not begin.
type CycleError struct {
	Participants []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %s", strings.Join(e.Participants, ", "))
}

// DanglingDependencyError reports a dependsOn edge to a missing id.
type DanglingDependencyError struct {
	ID      string
	Missing string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("resource %q depends on unknown resource %q", e.ID, e.Missing)
}

// Resolve orders descriptors into a deployment plan using Kahn's algorithm,
// grouping into stages the set of nodes whose in-degree reaches zero in the
// same round. Within a stage, descriptors are sorted by id for deterministic
// logs. Pure function: no I/O, no side effects beyond the returned plan.
func Resolve(descriptors []*ir.ResourceDescriptor) (*ir.DeploymentPlan, error) {
	byID := make(map[string]*ir.ResourceDescriptor, len(descriptors))
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("resource with empty id (kind %s, name %s)", d.Kind, d.Name)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate resource id %q", d.ID)
		}
		byID[d.ID] = d
	}

	// Deduplicated edges: dep -> dependents, plus in-degree per node.
	inDegree := make(map[string]int, len(descriptors))
	dependents := make(map[string][]string)
	for _, d := range descriptors {
		inDegree[d.ID] += 0
		seen := make(map[string]bool, len(d.DependsOn))
		for _, dep := range d.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &DanglingDependencyError{ID: d.ID, Missing: dep}
			}
			if dep == d.ID {
				return nil, &CycleError{Participants: []string{d.ID}}
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			inDegree[d.ID]++
			dependents[dep] = append(dependents[dep], d.ID)
		}
	}

	var stages []ir.Stage
	placed := 0
	ready := make([]string, 0, len(descriptors))
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		stage := make(ir.Stage, 0, len(ready))
		for _, id := range ready {
			stage = append(stage, byID[id])
		}
		stages = append(stages, stage)
		placed += len(stage)

		var next []string
		for _, id := range ready {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		ready = next
	}

	if placed != len(descriptors) {
		var remaining []string
		for id, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Participants: remaining}
	}

	return &ir.DeploymentPlan{
		ID:     uuid.NewString(),
		Stages: stages,
	}, nil
}
