package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"thread-manager/internal/domain"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoClient.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoClient stores thread mappings in a single-key DynamoDB table whose
// partition key PK holds the same "thread:<identifier>" key Redis uses.
type DynamoClient struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoClient creates a DynamoDB-backed thread store.
func NewDynamoClient(api dynamodbAPI, tableName string) (*DynamoClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoClient{api: api, tableName: tableName, now: time.Now}, nil
}

// GetThread reads the mapping with a strongly consistent read so a mapping
// written by a concurrent request is visible immediately.
func (c *DynamoClient) GetThread(ctx context.Context, identifier string) (string, bool, error) {
	m, found, err := c.getMapping(ctx, identifier)
	if err != nil {
		return "", false, fmt.Errorf("repository: GetThread: %w", err)
	}
	return m.ThreadID, found, nil
}

// putIfAbsentCondition lets a write land on a new key or on an item whose
// threadId is empty.
const putIfAbsentCondition = "attribute_not_exists(PK) OR threadId = :empty"

// PutThreadIfAbsent writes the mapping guarded by putIfAbsentCondition.
// On a lost race the winning mapping is read back.
func (c *DynamoClient) PutThreadIfAbsent(ctx context.Context, identifier, threadID string) (string, bool, error) {
	m := domain.ThreadMapping{
		Identifier: identifier,
		ThreadID:   threadID,
		CreatedAt:  c.now().UTC().Format(time.RFC3339),
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                mappingItem(m),
		ConditionExpression: aws.String(putIfAbsentCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberS{Value: ""},
		},
	})
	if err == nil {
		return threadID, true, nil
	}

	var condErr *types.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		return "", false, fmt.Errorf("repository: PutThreadIfAbsent: %w", err)
	}

	existing, found, err := c.getMapping(ctx, identifier)
	if err != nil {
		return "", false, fmt.Errorf("repository: PutThreadIfAbsent read existing: %w", err)
	}
	if !found {
		return "", false, errors.New("repository: PutThreadIfAbsent: condition failed but no mapping exists")
	}
	return existing.ThreadID, false, nil
}

// Ping confirms the table is reachable and usable.
func (c *DynamoClient) Ping(ctx context.Context) error {
	out, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	})
	if err != nil {
		return fmt.Errorf("repository: Ping: %w", err)
	}
	if out == nil || out.Table == nil {
		return errors.New("repository: Ping: empty table description")
	}
	switch out.Table.TableStatus {
	case types.TableStatusActive, types.TableStatusUpdating:
		return nil
	default:
		return fmt.Errorf("repository: Ping: table status %s", out.Table.TableStatus)
	}
}

func (c *DynamoClient) getMapping(ctx context.Context, identifier string) (domain.ThreadMapping, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: domain.ThreadKey(identifier)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ThreadMapping{}, false, err
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ThreadMapping{}, false, nil
	}
	m, err := itemToMapping(out.Item)
	if err != nil {
		return domain.ThreadMapping{}, false, err
	}
	return m, true, nil
}

func mappingItem(m domain.ThreadMapping) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: domain.ThreadKey(m.Identifier)},
		"identifier": &types.AttributeValueMemberS{Value: m.Identifier},
		"threadId":   &types.AttributeValueMemberS{Value: m.ThreadID},
		"createdAt":  &types.AttributeValueMemberS{Value: m.CreatedAt},
	}
}

func itemToMapping(item map[string]types.AttributeValue) (domain.ThreadMapping, error) {
	threadID, err := strAttr(item, "threadId")
	if err != nil {
		return domain.ThreadMapping{}, err
	}
	identifier, _ := strAttr(item, "identifier") // allow empty
	createdAt, _ := strAttr(item, "createdAt")   // allow empty
	return domain.ThreadMapping{
		Identifier: identifier,
		ThreadID:   threadID,
		CreatedAt:  createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
