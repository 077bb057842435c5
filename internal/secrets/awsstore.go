package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerStore backs the propagator with AWS Secrets Manager.
// Write is an upsert: create the secret, or put a new version when it
// already exists. The write-once-per-run guarantee lives in the Propagator,
// not here.
type SecretsManagerStore struct {
	client *secretsmanager.Client
	prefix string
}

func NewSecretsManagerStore(client *secretsmanager.Client, prefix string) *SecretsManagerStore {
	return &SecretsManagerStore{client: client, prefix: prefix}
}

func (s *SecretsManagerStore) Write(ctx context.Context, name, value string) (string, error) {
	full := s.prefix + name

	out, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         &full,
		SecretString: &value,
	})
	if err == nil {
		return *out.ARN, nil
	}

	var exists *types.ResourceExistsException
	if !errors.As(err, &exists) {
		return "", fmt.Errorf("failed to create secret %s: %w", full, err)
	}

	put, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     &full,
		SecretString: &value,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put secret value %s: %w", full, err)
	}
	return *put.ARN, nil
}

func (s *SecretsManagerStore) Locate(ctx context.Context, name string) (string, error) {
	full := s.prefix + name
	out, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &full,
	})
	if err != nil {
		return "", fmt.Errorf("failed to locate secret %s: %w", full, err)
	}
	return *out.ARN, nil
}

func (s *SecretsManagerStore) Read(ctx context.Context, location string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &location,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", location, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", location)
	}
	return *out.SecretString, nil
}
