package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/secrets"
	"github.com/stagehand-io/stagehand/providers/aws"
	"github.com/stagehand-io/stagehand/providers/docker"
	"github.com/stagehand-io/stagehand/providers/static"
)

// Provisioner creates-or-verifies one or more resource kinds against a
// target platform. Provision must be idempotent: a resource already matching
// the descriptor's idempotency key yields an AlreadyExists handle, never an
// error. Transient platform errors are retried internally; on exhaustion the
// provisioner returns an error and the stage runner records a Failed handle.
type Provisioner interface {
	Kinds() []string
	Provision(ctx context.Context, desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle) (*ir.ResourceHandle, error)
}

// Registry maps resource kinds to provisioners.
type Registry struct {
	mu           sync.RWMutex
	provisioners map[string]Provisioner
}

func NewRegistry() *Registry {
	return &Registry{
		provisioners: make(map[string]Provisioner),
	}
}

// Register wires a provisioner for every kind it declares.
func (r *Registry) Register(p Provisioner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range p.Kinds() {
		r.provisioners[kind] = p
	}
}

// LoadProvider initializes and registers a built-in provider by name.
func (r *Registry) LoadProvider(name string, sec *secrets.Propagator) error {
	var p Provisioner
	switch name {
	case "aws":
		p = aws.New(sec)
	case "docker":
		p = docker.New()
	case "static":
		p = static.New()
	default:
		return fmt.Errorf("unknown provider: %s", name)
	}
	r.Register(p)
	return nil
}

// Get returns the provisioner registered for a resource kind.
func (r *Registry) Get(kind string) (Provisioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.provisioners[kind]
	if !ok {
		return nil, fmt.Errorf("no provisioner for kind: %s", kind)
	}
	return p, nil
}
