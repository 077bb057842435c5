// Package static implements a deterministic in-process provisioner used by
// tests and dry runs. It models a cloud with create-or-get semantics: the
// existence memory is keyed on the idempotency key, so re-provisioning the
// same descriptor yields AlreadyExists.
package static

import (
	"context"
	"fmt"
	"sync"

	"github.com/stagehand-io/stagehand/internal/ir"
)

type record struct {
	resourceID string
	endpoint   string
}

type Provider struct {
	mu          sync.Mutex
	existing    map[string]record
	invocations map[string]int
	failures    map[string]int
}

func New() *Provider {
	return &Provider{
		existing:    make(map[string]record),
		invocations: make(map[string]int),
		failures:    make(map[string]int),
	}
}

func (p *Provider) Kinds() []string {
	return []string{"static"}
}

// Provision honors a few config keys for scripting test scenarios:
// "fail" (bool) always fails, "failTimes" (int) fails the first N calls,
// "endpoint" (string) sets the handle endpoint.
func (p *Provider) Provision(ctx context.Context, desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle) (*ir.ResourceHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.invocations[desc.ID]++

	if desc.ConfigBool("fail") {
		return nil, fmt.Errorf("simulated failure for %s", desc.ID)
	}
	if n := desc.ConfigInt("failTimes", 0); n > 0 && p.failures[desc.ID] < n {
		p.failures[desc.ID]++
		return nil, fmt.Errorf("simulated throttling for %s (%d/%d)", desc.ID, p.failures[desc.ID], n)
	}

	key := desc.Key()
	if rec, ok := p.existing[key]; ok {
		return &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   rec.resourceID,
			Endpoint:     rec.endpoint,
		}, nil
	}

	rec := record{
		resourceID: "static-" + desc.Name,
		endpoint:   desc.ConfigString("endpoint"),
	}
	p.existing[key] = rec

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   rec.resourceID,
		Endpoint:     rec.endpoint,
	}, nil
}

// Invocations returns how many times Provision ran for a resource id.
func (p *Provider) Invocations(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invocations[id]
}
