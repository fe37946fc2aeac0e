package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	putErr        error
	queryOut      *dynamodb.QueryOutput
	queryErr      error
	deleteErr     error
	lastPutInput  *dynamodb.PutItemInput
	lastQueryIn   *dynamodb.QueryInput
	deleteInputs  []*dynamodb.DeleteItemInput
	deleteErrAtN  int // fail the Nth delete (1-based) when deleteErr is set
	deleteCallNum int
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deleteCallNum++
	f.deleteInputs = append(f.deleteInputs, in)
	if f.deleteErr != nil && (f.deleteErrAtN == 0 || f.deleteCallNum == f.deleteErrAtN) {
		return nil, f.deleteErr
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func makeItem(userID string, timestamp int64, text string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":    &types.AttributeValueMemberS{Value: userID},
		"timestamp": &types.AttributeValueMemberN{Value: strconv.FormatInt(timestamp, 10)},
		"text":      &types.AttributeValueMemberS{Value: text},
	}
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "whendiditasks")
	require.NoError(t, err)
	return c
}

func withFixedNow(t *testing.T, millis int64) {
	t.Helper()
	orig := nowMillis
	nowMillis = func() int64 { return millis }
	t.Cleanup(func() { nowMillis = orig })
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "whendiditasks")
	require.Error(t, err)

	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestAppend_HappyPath(t *testing.T) {
	withFixedNow(t, 1700000000001)
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	ts, err := c.Append(context.Background(), "u1", "watered the plants")
	require.NoError(t, err)
	require.Equal(t, int64(1700000000001), ts)

	require.NotNil(t, db.lastPutInput)
	require.Equal(t, "whendiditasks", *db.lastPutInput.TableName)
	require.Equal(t, "u1", db.lastPutInput.Item["userId"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "1700000000001", db.lastPutInput.Item["timestamp"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "watered the plants", db.lastPutInput.Item["text"].(*types.AttributeValueMemberS).Value)
}

func TestAppend_MissingUserID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	_, err := c.Append(context.Background(), "", "watered the plants")
	require.Error(t, err)
	require.Contains(t, err.Error(), "userID is required")
}

func TestAppend_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	_, err := c.Append(context.Background(), "u1", "watered the plants")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Append")
}

func TestListDescending_HappyPath(t *testing.T) {
	db := &fakeDynamo{
		queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				makeItem("u1", 1700000000002, "paid the bills"),
				makeItem("u1", 1700000000001, "watered the plants"),
			},
		},
	}
	c := mustNewClient(t, db)

	tasks, err := c.ListDescending(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, int64(1700000000002), tasks[0].Timestamp)
	require.Equal(t, "paid the bills", tasks[0].Text)
	require.Equal(t, int64(1700000000001), tasks[1].Timestamp)
	require.Equal(t, "watered the plants", tasks[1].Text)
}

func TestListDescending_QueryShape(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	_, err := c.ListDescending(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "userId = :uid", *db.lastQueryIn.KeyConditionExpression)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
}

func TestListDescending_EmptyResult(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	tasks, err := c.ListDescending(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, tasks)
	require.NotNil(t, tasks)
}

func TestListDescending_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	c := mustNewClient(t, db)
	_, err := c.ListDescending(context.Background(), "u1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ListDescending")
}

func TestListDescending_MalformedItem(t *testing.T) {
	item := map[string]types.AttributeValue{
		"userId":    &types.AttributeValueMemberS{Value: "u1"},
		"timestamp": &types.AttributeValueMemberS{Value: "not-a-number"},
		"text":      &types.AttributeValueMemberS{Value: "watered the plants"},
	}
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}}
	c := mustNewClient(t, db)
	_, err := c.ListDescending(context.Background(), "u1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "timestamp")
}

func TestDeleteOne_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	err := c.DeleteOne(context.Background(), "u1", 1700000000001)
	require.NoError(t, err)
	require.Len(t, db.deleteInputs, 1)
	require.Equal(t, "u1", db.deleteInputs[0].Key["userId"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "1700000000001", db.deleteInputs[0].Key["timestamp"].(*types.AttributeValueMemberN).Value)
}

func TestDeleteOne_AbsentKeyIsIdempotent(t *testing.T) {
	// DynamoDB DeleteItem succeeds on absent keys; two identical deletes both succeed.
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.DeleteOne(context.Background(), "u1", 1700000000001))
	require.NoError(t, c.DeleteOne(context.Background(), "u1", 1700000000001))
	require.Len(t, db.deleteInputs, 2)
}

func TestDeleteOne_DynamoError(t *testing.T) {
	db := &fakeDynamo{deleteErr: errors.New("internal server error")}
	c := mustNewClient(t, db)
	err := c.DeleteOne(context.Background(), "u1", 1700000000001)
	require.Error(t, err)
	require.Contains(t, err.Error(), "DeleteOne")
}

func TestDeleteAll_DeletesEveryListedTask(t *testing.T) {
	db := &fakeDynamo{
		queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				makeItem("u1", 1700000000003, "c"),
				makeItem("u1", 1700000000002, "b"),
				makeItem("u1", 1700000000001, "a"),
			},
		},
	}
	c := mustNewClient(t, db)
	require.NoError(t, c.DeleteAll(context.Background(), "u1"))
	require.Len(t, db.deleteInputs, 3)
	require.Equal(t, "1700000000003", db.deleteInputs[0].Key["timestamp"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "1700000000001", db.deleteInputs[2].Key["timestamp"].(*types.AttributeValueMemberN).Value)
}

func TestDeleteAll_EmptyLog(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	require.NoError(t, c.DeleteAll(context.Background(), "u1"))
	require.Empty(t, db.deleteInputs)
}

func TestDeleteAll_ListError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("boom")}
	c := mustNewClient(t, db)
	err := c.DeleteAll(context.Background(), "u1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "DeleteAll list")
}

func TestDeleteAll_StopsOnFirstFailure(t *testing.T) {
	db := &fakeDynamo{
		queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				makeItem("u1", 1700000000003, "c"),
				makeItem("u1", 1700000000002, "b"),
				makeItem("u1", 1700000000001, "a"),
			},
		},
		deleteErr:    errors.New("throttled"),
		deleteErrAtN: 2,
	}
	c := mustNewClient(t, db)
	err := c.DeleteAll(context.Background(), "u1")
	require.Error(t, err)
	// Partial deletion is accepted; the loop must not continue past the failure.
	require.Len(t, db.deleteInputs, 2)
}
