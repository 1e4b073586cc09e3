package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/MdanzDev/nickstore/internal/aws"
)

// stateRecord is the item shape in the state table.
type stateRecord struct {
	StateKey  string    `dynamodbav:"state_key"` // PK
	Value     string    `dynamodbav:"value"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// Dynamo keeps one item per key in a DynamoDB table.
type Dynamo struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamo returns a Dynamo backend for tableName.
func NewDynamo(client aws.DynamoDBAPI, tableName string) *Dynamo {
	return &Dynamo{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

func (d *Dynamo) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &d.tableName,
		Key: map[string]types.AttributeValue{
			"state_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var rec stateRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return []byte(rec.Value), nil
}

func (d *Dynamo) Set(ctx context.Context, key string, value []byte) error {
	item, err := d.record(key, value)
	if err != nil {
		return err
	}
	_, err = d.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Claim puts the item only if no item with the same key exists.
func (d *Dynamo) Claim(ctx context.Context, key string, value []byte) (bool, error) {
	item, err := d.record(key, value)
	if err != nil {
		return false, err
	}
	cond := "attribute_not_exists(state_key)"
	return d.putIf(ctx, &dyn.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: &cond,
	})
}

// Swap puts the item only if the stored value equals old.
func (d *Dynamo) Swap(ctx context.Context, key string, old, value []byte) (bool, error) {
	item, err := d.record(key, value)
	if err != nil {
		return false, err
	}
	cond := "#v = :expected"
	return d.putIf(ctx, &dyn.PutItemInput{
		TableName:                &d.tableName,
		Item:                     item,
		ConditionExpression:      &cond,
		ExpressionAttributeNames: map[string]string{"#v": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(old)},
		},
	})
}

func (d *Dynamo) putIf(ctx context.Context, input *dyn.PutItemInput) (bool, error) {
	_, err := d.client.PutItem(ctx, input)
	if err != nil {
		// detect conditional check failure
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

func (d *Dynamo) record(key string, value []byte) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(stateRecord{
		StateKey:  key,
		Value:     string(value),
		UpdatedAt: d.nowFunc().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return item, nil
}

func boolPtr(b bool) *bool { return &b }
