package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// provisionSecretStore ensures the named Secrets Manager secret exists.
// The secret value itself is written later by whichever provisioner
// generates credentials, through the propagator.
func (p *Provider) provisionSecretStore(ctx context.Context, desc *ir.ResourceDescriptor) (*ir.ResourceHandle, error) {
	name := desc.Key()

	existing, err := p.secretsmanagerClient.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &name,
	})
	if err == nil {
		return &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   *existing.ARN,
		}, nil
	}
	var notFound *smtypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to describe secret %s: %w", name, err)
	}

	input := &secretsmanager.CreateSecretInput{
		Name: &name,
	}
	if d := desc.ConfigString("description"); d != "" {
		input.Description = &d
	}
	if kms := desc.ConfigString("kmsKeyId"); kms != "" {
		input.KmsKeyId = &kms
	}

	resp, err := p.secretsmanagerClient.CreateSecret(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   *resp.ARN,
	}, nil
}
