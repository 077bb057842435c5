package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// provisionCompute creates the EC2 launch template for the GPU inference
// tier. Secrets advertised by dependency handles are resolved through the
// propagator into the instance user data.
func (p *Provider) provisionCompute(ctx context.Context, desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle) (*ir.ResourceHandle, error) {
	name := desc.Key()

	existing, err := p.ec2Client.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{
		LaunchTemplateNames: []string{name},
	})
	if err == nil && len(existing.LaunchTemplates) > 0 {
		return &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   *existing.LaunchTemplates[0].LaunchTemplateId,
		}, nil
	}
	if err != nil {
		var apiErr smithy.APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "InvalidLaunchTemplateName.NotFoundException" {
			return nil, fmt.Errorf("failed to describe launch template %s: %w", name, err)
		}
	}

	imageID := desc.ConfigString("imageId")
	if imageID == "" {
		return nil, fmt.Errorf("compute %s: config key %q is required", desc.ID, "imageId")
	}
	instanceType := desc.ConfigString("instanceType")
	if instanceType == "" {
		instanceType = "g4dn.xlarge"
	}

	userData, err := p.renderUserData(ctx, deps)
	if err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.CreateLaunchTemplate(ctx, &ec2.CreateLaunchTemplateInput{
		LaunchTemplateName: &name,
		LaunchTemplateData: &types.RequestLaunchTemplateData{
			ImageId:      &imageID,
			InstanceType: types.InstanceType(instanceType),
			UserData:     &userData,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create launch template %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   *resp.LaunchTemplate.LaunchTemplateId,
	}, nil
}

// renderUserData resolves every secret ref advertised by the dependency
// handles and emits them as environment exports, sorted for stable output.
func (p *Provider) renderUserData(ctx context.Context, deps map[string]*ir.ResourceHandle) (string, error) {
	var lines []string
	for _, h := range deps {
		for key, ref := range h.SecretRefs {
			value, err := p.sec.Resolve(ctx, ref)
			if err != nil {
				return "", fmt.Errorf("failed to resolve secret %s for %s: %w", ref.Name, h.DescriptorID, err)
			}
			lines = append(lines, fmt.Sprintf("export %s=%q", envName(key), value))
		}
		if h.Endpoint != "" {
			lines = append(lines, fmt.Sprintf("export %s=%q", envName(h.DescriptorID)+"_ENDPOINT", h.Endpoint))
		}
	}
	sort.Strings(lines)

	script := "#!/bin/bash\n" + strings.Join(lines, "\n") + "\n"
	return base64.StdEncoding.EncodeToString([]byte(script)), nil
}

func envName(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, s)
}
