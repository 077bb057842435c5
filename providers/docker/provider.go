// Package docker provisions the frontend container on a local Docker
// daemon, used for development deployments where the cloud frontend tier is
// overkill. Idempotency key is the container name.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/stagehand-io/stagehand/internal/ir"
)

type Provider struct {
	mu     sync.Mutex
	client *client.Client
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Kinds() []string {
	return []string{"docker.container"}
}

// ensureClient lazily builds the daemon client. Containers in the same
// stage provision concurrently, so init is guarded.
func (p *Provider) ensureClient() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	p.client = cli
	return nil
}

// Provision config keys: "image" (required), "hostPort" and
// "containerPort" (ints), "env" (string map). Secret refs from dependency
// handles are not injected here; the container reads them from its own
// environment contract.
func (p *Provider) Provision(ctx context.Context, desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle) (*ir.ResourceHandle, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}

	name := desc.Key()
	hostPort := desc.ConfigInt("hostPort", 8080)

	inspect, err := p.client.ContainerInspect(ctx, name)
	if err == nil {
		if !inspect.State.Running {
			if err := p.client.ContainerStart(ctx, inspect.ID, container.StartOptions{}); err != nil {
				return nil, fmt.Errorf("failed to start existing container %s: %w", name, err)
			}
		}
		return &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   inspect.ID,
			Endpoint:     fmt.Sprintf("http://127.0.0.1:%d", hostPort),
		}, nil
	}
	if !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	img := desc.ConfigString("image")
	if img == "" {
		return nil, fmt.Errorf("container %s: config key %q is required", desc.ID, "image")
	}

	reader, err := p.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	io.Copy(os.Stderr, reader)
	reader.Close()

	containerPort := desc.ConfigInt("containerPort", 80)
	exposed := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			exposed: []nat.PortBinding{{
				HostIP:   "0.0.0.0",
				HostPort: fmt.Sprintf("%d", hostPort),
			}},
		},
	}

	var env []string
	for k, v := range desc.ConfigStringMap("env") {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	resp, err := p.client.ContainerCreate(ctx,
		&container.Config{
			Image: img,
			Env:   env,
			ExposedPorts: nat.PortSet{
				exposed: struct{}{},
			},
		},
		hostConfig,
		&network.NetworkingConfig{},
		&v1.Platform{},
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container %s: %w", name, err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   resp.ID,
		Endpoint:     fmt.Sprintf("http://127.0.0.1:%d", hostPort),
	}, nil
}
