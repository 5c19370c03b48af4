package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreateTables provisions the store's tables on-demand. Tables that already
// exist are left as they are.
func CreateTables(ctx context.Context, client *dynamodb.Client, t Tables) error {
	specs := []struct {
		name string
		hash string
		rng  string
	}{
		{t.Documents, "tenant_id", "id"},
		{t.Signatures, "pk", "sk"},
		{t.Transitions, "pk", "sk"},
		{t.Counters, "pk", ""},
		{t.Outbox, "pk", "sk"},
	}
	for _, s := range specs {
		in := &dynamodb.CreateTableInput{
			TableName:   aws.String(s.name),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(s.hash), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(s.hash), KeyType: types.KeyTypeHash},
			},
		}
		if s.rng != "" {
			in.AttributeDefinitions = append(in.AttributeDefinitions,
				types.AttributeDefinition{AttributeName: aws.String(s.rng), AttributeType: types.ScalarAttributeTypeS})
			in.KeySchema = append(in.KeySchema,
				types.KeySchemaElement{AttributeName: aws.String(s.rng), KeyType: types.KeyTypeRange})
		}
		if _, err := client.CreateTable(ctx, in); err != nil {
			var exists *types.ResourceInUseException
			if errors.As(err, &exists) {
				continue
			}
			return fmt.Errorf("create table %s: %w", s.name, err)
		}
	}
	return nil
}
