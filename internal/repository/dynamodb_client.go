package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Dood345/AlexaWhenDidI/internal/domain"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// TaskStore defines the task log operations consumed by the usecase layer.
type TaskStore interface {
	Append(ctx context.Context, userID, text string) (int64, error)
	ListDescending(ctx context.Context, userID string) ([]domain.Task, error)
	DeleteOne(ctx context.Context, userID string, timestamp int64) error
	DeleteAll(ctx context.Context, userID string) error
}

// Client wraps the DynamoDB table holding per-user task logs. The table is
// keyed by userId (partition) and timestamp (sort).
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// Append stores a new task using the current time in milliseconds as its key
// and returns the assigned timestamp.
func (c *Client) Append(ctx context.Context, userID, text string) (int64, error) {
	if userID == "" {
		return 0, errors.New("repository: Append: userID is required")
	}
	timestamp := nowMillis()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      taskItem(userID, timestamp, text),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: Append: %w", err)
	}
	return timestamp, nil
}

// ListDescending returns every task for the user, newest first. An empty
// slice is returned when the user has no tasks.
func (c *Client) ListDescending(ctx context.Context, userID string) ([]domain.Task, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		// Newest first.
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListDescending query: %w", err)
	}

	tasks := make([]domain.Task, 0, len(out.Items))
	for _, item := range out.Items {
		task, err := itemToTask(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListDescending unmarshal: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DeleteOne removes the task with the given key. Deleting an absent key is a
// no-op, not an error; the operation is idempotent.
func (c *Client) DeleteOne(ctx context.Context, userID string, timestamp int64) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       taskKey(userID, timestamp),
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteOne: %w", err)
	}
	return nil
}

// DeleteAll removes every task for the user, one key at a time. The sequence
// is not transactional: a failure mid-way leaves a partial deletion, which is
// acceptable because the remaining records are independently re-deletable.
func (c *Client) DeleteAll(ctx context.Context, userID string) error {
	tasks, err := c.ListDescending(ctx, userID)
	if err != nil {
		return fmt.Errorf("repository: DeleteAll list: %w", err)
	}
	for _, task := range tasks {
		if err := c.DeleteOne(ctx, userID, task.Timestamp); err != nil {
			return fmt.Errorf("repository: DeleteAll: %w", err)
		}
	}
	return nil
}

func taskKey(userID string, timestamp int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":    &types.AttributeValueMemberS{Value: userID},
		"timestamp": &types.AttributeValueMemberN{Value: strconv.FormatInt(timestamp, 10)},
	}
}

func taskItem(userID string, timestamp int64, text string) map[string]types.AttributeValue {
	item := taskKey(userID, timestamp)
	item["text"] = &types.AttributeValueMemberS{Value: text}
	return item
}

// itemToTask converts a DynamoDB attribute map to a Task.
func itemToTask(item map[string]types.AttributeValue) (domain.Task, error) {
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.Task{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Task{}, err
	}
	timestamp, err := int64Attr(item, "timestamp")
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{UserID: userID, Timestamp: timestamp, Text: text}, nil
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

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

// nowMillis is swapped in tests for deterministic timestamps.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}
