package aws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	ectypes "github.com/aws/aws-sdk-go-v2/service/elasticache/types"

	"github.com/stagehand-io/stagehand/internal/ir"
	"github.com/stagehand-io/stagehand/internal/secrets"
)

// provisionCache creates a Redis ElastiCache cluster. The AUTH token is
// generated here and handed to downstream resources through the propagator,
// never through the handle itself.
func (p *Provider) provisionCache(ctx context.Context, desc *ir.ResourceDescriptor) (*ir.ResourceHandle, error) {
	name := desc.Key()

	existing, err := p.elasticacheClient.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{
		CacheClusterId:    &name,
		ShowCacheNodeInfo: boolPtr(true),
	})
	if err == nil && len(existing.CacheClusters) > 0 {
		cluster := existing.CacheClusters[0]
		// The cluster's auth token was stored under the deterministic
		// logical name on creation; dependents still need its ref.
		ref, err := p.sec.RefFor(ctx, authTokenName(name))
		if err != nil {
			return nil, fmt.Errorf("cache cluster %s exists but its auth token is missing: %w", name, err)
		}
		h := &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   *cluster.CacheClusterId,
			SecretRefs:   map[string]secrets.Ref{"authToken": ref},
		}
		if len(cluster.CacheNodes) > 0 && cluster.CacheNodes[0].Endpoint != nil {
			ep := cluster.CacheNodes[0].Endpoint
			h.Endpoint = fmt.Sprintf("%s:%d", *ep.Address, *ep.Port)
		}
		return h, nil
	}
	if err != nil {
		var notFound *ectypes.CacheClusterNotFoundFault
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to describe cache cluster %s: %w", name, err)
		}
	}

	token, err := generateAuthToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate auth token: %w", err)
	}
	ref, err := p.sec.Put(ctx, authTokenName(name), token, desc.ConfigBool("rotatable"))
	if err != nil {
		return nil, fmt.Errorf("failed to store auth token for %s: %w", name, err)
	}

	nodeType := desc.ConfigString("nodeType")
	if nodeType == "" {
		nodeType = "cache.t3.micro"
	}

	resp, err := p.elasticacheClient.CreateCacheCluster(ctx, &elasticache.CreateCacheClusterInput{
		CacheClusterId:           &name,
		Engine:                   strPtr("redis"),
		CacheNodeType:            &nodeType,
		NumCacheNodes:            int32Ptr(int32(desc.ConfigInt("numNodes", 1))),
		AuthToken:                &token,
		TransitEncryptionEnabled: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache cluster %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   *resp.CacheCluster.CacheClusterId,
		SecretRefs:   map[string]secrets.Ref{"authToken": ref},
	}, nil
}

// authTokenName is the deterministic logical secret name for a cluster's
// AUTH token, stable across runs so a re-run can find it again.
func authTokenName(clusterKey string) string {
	return clusterKey + "-auth-token"
}

func generateAuthToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
