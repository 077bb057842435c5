package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// provisionAutoScaling creates the auto scaling group over the compute
// tier's launch template. Config key "launchTemplate" names the dependency
// id of the aws.compute resource.
func (p *Provider) provisionAutoScaling(ctx context.Context, desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle) (*ir.ResourceHandle, error) {
	name := desc.Key()

	existing, err := p.autoscalingClient.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe auto scaling group %s: %w", name, err)
	}
	if len(existing.AutoScalingGroups) > 0 {
		return &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   *existing.AutoScalingGroups[0].AutoScalingGroupARN,
		}, nil
	}

	lt, err := depHandle(desc, deps, "launchTemplate")
	if err != nil {
		return nil, err
	}

	input := &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: &name,
		LaunchTemplate: &astypes.LaunchTemplateSpecification{
			LaunchTemplateId: &lt.ResourceID,
		},
		MinSize:         int32Ptr(int32(desc.ConfigInt("minSize", 1))),
		MaxSize:         int32Ptr(int32(desc.ConfigInt("maxSize", 2))),
		DesiredCapacity: int32Ptr(int32(desc.ConfigInt("desiredCapacity", 1))),
	}
	if subnets := desc.ConfigStringSlice("subnets"); len(subnets) > 0 {
		input.VPCZoneIdentifier = strPtr(strings.Join(subnets, ","))
	} else if zones := desc.ConfigStringSlice("availabilityZones"); len(zones) > 0 {
		input.AvailabilityZones = zones
	}

	_, err = p.autoscalingClient.CreateAutoScalingGroup(ctx, input)
	if err != nil {
		// The create call races against a concurrent deploy of the same
		// group; treat that as already provisioned.
		if strings.Contains(err.Error(), "AlreadyExists") {
			return &ir.ResourceHandle{
				DescriptorID: desc.ID,
				Status:       ir.StatusAlreadyExists,
				ResourceID:   name,
			}, nil
		}
		return nil, fmt.Errorf("failed to create auto scaling group %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   name,
	}, nil
}
