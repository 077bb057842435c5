// Package aws provisions the deployment stack against AWS with
// create-or-verify semantics: every kind first looks for a resource
// matching the descriptor's idempotency key and returns AlreadyExists when
// found. "Already exists" is never an error.
package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/secrets"
)

// idempotencyTag marks resources that carry their key as a tag rather than
// a unique name (currently only VPCs).
const idempotencyTag = "stagehand:key"

const defaultRegion = "us-east-1"

type Provider struct {
	sec *secrets.Propagator

	mu                   sync.Mutex
	region               string
	ec2Client            *ec2.Client
	autoscalingClient    *autoscaling.Client
	dynamodbClient       *dynamodb.Client
	elasticacheClient    *elasticache.Client
	ecsClient            *ecs.Client
	apigatewayv2Client   *apigatewayv2.Client
	secretsmanagerClient *secretsmanager.Client
}

func New(sec *secrets.Propagator) *Provider {
	return &Provider{sec: sec}
}

func (p *Provider) Kinds() []string {
	return []string{
		"aws.network",
		"aws.secretstore",
		"aws.datastore",
		"aws.cache",
		"aws.compute",
		"aws.autoscaling",
		"aws.gateway",
		"aws.frontend",
	}
}

func (p *Provider) ensureClients(ctx context.Context, region string) error {
	if region == "" {
		region = defaultRegion
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ec2Client != nil && p.region == region {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %w", err)
	}

	p.region = region
	p.ec2Client = ec2.NewFromConfig(cfg)
	p.autoscalingClient = autoscaling.NewFromConfig(cfg)
	p.dynamodbClient = dynamodb.NewFromConfig(cfg)
	p.elasticacheClient = elasticache.NewFromConfig(cfg)
	p.ecsClient = ecs.NewFromConfig(cfg)
	p.apigatewayv2Client = apigatewayv2.NewFromConfig(cfg)
	p.secretsmanagerClient = secretsmanager.NewFromConfig(cfg)

	return nil
}

func (p *Provider) Provision(ctx context.Context, desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle) (*ir.ResourceHandle, error) {
	if err := p.ensureClients(ctx, desc.Region); err != nil {
		return nil, err
	}

	switch desc.Kind {
	case "aws.network":
		return p.provisionNetwork(ctx, desc)
	case "aws.secretstore":
		return p.provisionSecretStore(ctx, desc)
	case "aws.datastore":
		return p.provisionDatastore(ctx, desc)
	case "aws.cache":
		return p.provisionCache(ctx, desc)
	case "aws.compute":
		return p.provisionCompute(ctx, desc, deps)
	case "aws.autoscaling":
		return p.provisionAutoScaling(ctx, desc, deps)
	case "aws.gateway":
		return p.provisionGateway(ctx, desc)
	case "aws.frontend":
		return p.provisionFrontend(ctx, desc, deps)
	}

	return nil, fmt.Errorf("unknown resource kind: %s", desc.Kind)
}

// depHandle returns the live handle for the dependency id named by the
// given config key.
func depHandle(desc *ir.ResourceDescriptor, deps map[string]*ir.ResourceHandle, configKey string) (*ir.ResourceHandle, error) {
	id := desc.ConfigString(configKey)
	if id == "" {
		return nil, fmt.Errorf("%s: config key %q is required", desc.ID, configKey)
	}
	h, ok := deps[id]
	if !ok {
		return nil, fmt.Errorf("%s: %q names %q which is not a declared dependency", desc.ID, configKey, id)
	}
	if !h.Live() {
		return nil, fmt.Errorf("%s: dependency %q is %s", desc.ID, id, h.Status)
	}
	return h, nil
}

func strPtr(s string) *string { return &s }

func int32Ptr(i int32) *int32 { return &i }

func boolPtr(b bool) *bool { return &b }
