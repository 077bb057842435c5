package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// provisionNetwork creates the VPC backing a deployment. VPCs have no
// unique name, so the idempotency key lives in a tag and lookup filters
// on it.
func (p *Provider) provisionNetwork(ctx context.Context, desc *ir.ResourceDescriptor) (*ir.ResourceHandle, error) {
	key := desc.Key()

	existing, err := p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []types.Filter{{
			Name:   strPtr("tag:" + idempotencyTag),
			Values: []string{key},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPCs: %w", err)
	}
	if len(existing.Vpcs) > 0 {
		return &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   *existing.Vpcs[0].VpcId,
		}, nil
	}

	cidr := desc.ConfigString("cidrBlock")
	if cidr == "" {
		cidr = "10.0.0.0/16"
	}

	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: &cidr,
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeVpc,
			Tags: []types.Tag{
				{Key: strPtr(idempotencyTag), Value: &key},
				{Key: strPtr("Name"), Value: &desc.Name},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   *resp.Vpc.VpcId,
	}, nil
}
