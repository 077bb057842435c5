package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// provisionFrontend runs the web frontend as a Fargate service. Secrets
// from dependency handles are passed to the task by store location, so the
// raw values never appear in the task definition.
func (p *Provider) provisionFrontend(ctx context.Context, desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle) (*ir.ResourceHandle, error) {
	name := desc.Key()

	clusterName := desc.ConfigString("cluster")
	if clusterName == "" {
		clusterName = name + "-cluster"
	}

	// CreateCluster is create-or-get on the AWS side already.
	if _, err := p.ecsClient.CreateCluster(ctx, &ecs.CreateClusterInput{
		ClusterName: &clusterName,
	}); err != nil {
		return nil, fmt.Errorf("failed to ensure cluster %s: %w", clusterName, err)
	}

	existing, err := p.ecsClient.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  &clusterName,
		Services: []string{name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe service %s: %w", name, err)
	}
	for _, svc := range existing.Services {
		if svc.Status != nil && *svc.Status == "ACTIVE" {
			return &ir.ResourceHandle{
				DescriptorID: desc.ID,
				Status:       ir.StatusAlreadyExists,
				ResourceID:   *svc.ServiceArn,
			}, nil
		}
	}

	img := desc.ConfigString("image")
	if img == "" {
		return nil, fmt.Errorf("frontend %s: config key %q is required", desc.ID, "image")
	}
	containerPort := int32(desc.ConfigInt("containerPort", 80))

	taskDef, err := p.registerTaskDefinition(ctx, desc, name, img, containerPort, deps)
	if err != nil {
		return nil, err
	}

	input := &ecs.CreateServiceInput{
		Cluster:        &clusterName,
		ServiceName:    &name,
		TaskDefinition: taskDef,
		DesiredCount:   int32Ptr(int32(desc.ConfigInt("desiredCount", 1))),
		LaunchType:     ecstypes.LaunchTypeFargate,
	}
	if subnets := desc.ConfigStringSlice("subnets"); len(subnets) > 0 {
		input.NetworkConfiguration = &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        subnets,
				SecurityGroups: desc.ConfigStringSlice("securityGroups"),
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
			},
		}
	}

	resp, err := p.ecsClient.CreateService(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create service %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   *resp.Service.ServiceArn,
	}, nil
}

func (p *Provider) registerTaskDefinition(ctx context.Context, desc *ir.ResourceDescriptor, name, img string, port int32, deps map[string]*ir.ResourceHandle) (*string, error) {
	// Secrets travel by reference: ECS injects the value at task start
	// from the store location.
	var taskSecrets []ecstypes.Secret
	var env []ecstypes.KeyValuePair
	for _, h := range deps {
		for key, ref := range h.SecretRefs {
			taskSecrets = append(taskSecrets, ecstypes.Secret{
				Name:      strPtr(envName(key)),
				ValueFrom: strPtr(ref.StoreLocation),
			})
		}
		if h.Endpoint != "" {
			env = append(env, ecstypes.KeyValuePair{
				Name:  strPtr(envName(h.DescriptorID) + "_ENDPOINT"),
				Value: strPtr(h.Endpoint),
			})
		}
	}
	sort.Slice(taskSecrets, func(i, j int) bool { return *taskSecrets[i].Name < *taskSecrets[j].Name })
	sort.Slice(env, func(i, j int) bool { return *env[i].Name < *env[j].Name })

	input := &ecs.RegisterTaskDefinitionInput{
		Family:                  &name,
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		Cpu:                     strPtr("256"),
		Memory:                  strPtr("512"),
		ContainerDefinitions: []ecstypes.ContainerDefinition{{
			Name:        &name,
			Image:       &img,
			Essential:   boolPtr(true),
			Environment: env,
			Secrets:     taskSecrets,
			PortMappings: []ecstypes.PortMapping{{
				ContainerPort: &port,
				Protocol:      ecstypes.TransportProtocolTcp,
			}},
		}},
	}
	// Fargate needs the execution role to pull images and fetch the task
	// secrets from their store locations.
	if role := desc.ConfigString("executionRoleArn"); role != "" {
		input.ExecutionRoleArn = &role
	}

	resp, err := p.ecsClient.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to register task definition %s: %w", name, err)
	}

	return resp.TaskDefinition.TaskDefinitionArn, nil
}
