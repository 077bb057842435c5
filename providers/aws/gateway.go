package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	agwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// provisionGateway creates the HTTP API fronting the inference tier. API
// names are not unique in API Gateway, so lookup scans for the first API
// whose name matches the idempotency key.
func (p *Provider) provisionGateway(ctx context.Context, desc *ir.ResourceDescriptor) (*ir.ResourceHandle, error) {
	name := desc.Key()

	var next *string
	for {
		out, err := p.apigatewayv2Client.GetApis(ctx, &apigatewayv2.GetApisInput{NextToken: next})
		if err != nil {
			return nil, fmt.Errorf("failed to list APIs: %w", err)
		}
		for _, api := range out.Items {
			if api.Name != nil && *api.Name == name {
				return &ir.ResourceHandle{
					DescriptorID: desc.ID,
					Status:       ir.StatusAlreadyExists,
					ResourceID:   *api.ApiId,
					Endpoint:     deref(api.ApiEndpoint),
				}, nil
			}
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	input := &apigatewayv2.CreateApiInput{
		Name:         &name,
		ProtocolType: agwtypes.ProtocolTypeHttp,
	}
	if target := desc.ConfigString("target"); target != "" {
		input.Target = &target
	}

	resp, err := p.apigatewayv2Client.CreateApi(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create API %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   *resp.ApiId,
		Endpoint:     deref(resp.ApiEndpoint),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
