package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stagehand-io/stagehand/internal/ir"
)

// provisionDatastore creates the DynamoDB table holding application
// documents. Config keys: "hashKey" (default "id"), optional "rangeKey".
func (p *Provider) provisionDatastore(ctx context.Context, desc *ir.ResourceDescriptor) (*ir.ResourceHandle, error) {
	name := desc.Key()

	existing, err := p.dynamodbClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &name,
	})
	if err == nil {
		return &ir.ResourceHandle{
			DescriptorID: desc.ID,
			Status:       ir.StatusAlreadyExists,
			ResourceID:   *existing.Table.TableArn,
		}, nil
	}
	var notFound *ddbtypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
	}

	hashKey := desc.ConfigString("hashKey")
	if hashKey == "" {
		hashKey = "id"
	}

	attrs := []ddbtypes.AttributeDefinition{{
		AttributeName: &hashKey,
		AttributeType: ddbtypes.ScalarAttributeTypeS,
	}}
	schema := []ddbtypes.KeySchemaElement{{
		AttributeName: &hashKey,
		KeyType:       ddbtypes.KeyTypeHash,
	}}
	if rangeKey := desc.ConfigString("rangeKey"); rangeKey != "" {
		attrs = append(attrs, ddbtypes.AttributeDefinition{
			AttributeName: &rangeKey,
			AttributeType: ddbtypes.ScalarAttributeTypeS,
		})
		schema = append(schema, ddbtypes.KeySchemaElement{
			AttributeName: &rangeKey,
			KeyType:       ddbtypes.KeyTypeRange,
		})
	}

	resp, err := p.dynamodbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            &name,
		AttributeDefinitions: attrs,
		KeySchema:            schema,
		BillingMode:          ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}

	return &ir.ResourceHandle{
		DescriptorID: desc.ID,
		Status:       ir.StatusCreated,
		ResourceID:   *resp.TableDescription.TableArn,
	}, nil
}
