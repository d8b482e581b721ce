package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mindmap-backend/application/ports"
	pkgerrors "mindmap-backend/pkg/errors"
)

type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.PutItemOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.GetItemOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDynamoDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.DeleteItemOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.ScanOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func testSnapshot(id string, version int, updated time.Time) *ports.Snapshot {
	return &ports.Snapshot{
		SessionID:   id,
		Goal:        "Write a novel",
		Turns:       []ports.SnapshotTurn{},
		Nodes:       []ports.SnapshotNode{{ID: "n1", Label: "Write a novel", Kind: "root", Seq: 1}},
		Edges:       []ports.SnapshotEdge{},
		Suggestions: []string{"Genre?"},
		Version:     version,
		UpdatedAt:   updated,
	}
}

func TestSnapshotRepository_SaveBuildsConditionalPut(t *testing.T) {
	client := new(MockDynamoDB)
	repo := NewSnapshotRepository(client, "mindmap", nil)

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		pk, ok := in.Item["PK"].(*types.AttributeValueMemberS)
		version, vok := in.Item["Version"].(*types.AttributeValueMemberN)
		return *in.TableName == "mindmap" &&
			ok && pk.Value == "SESSION#s1" &&
			vok && version.Value == "4" &&
			in.ConditionExpression != nil
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()

	require.NoError(t, repo.Save(context.Background(), testSnapshot("s1", 4, time.Now())))
	client.AssertExpectations(t)
}

func TestSnapshotRepository_SaveConflict(t *testing.T) {
	client := new(MockDynamoDB)
	repo := NewSnapshotRepository(client, "mindmap", nil)

	client.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("stale")}).Once()
	err := repo.Save(context.Background(), testSnapshot("s1", 1, time.Now()))
	assert.True(t, pkgerrors.IsConflict(err))

	client.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()
	err = repo.Save(context.Background(), testSnapshot("s1", 2, time.Now()))
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypePersistence))

	client.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Fault: smithy.FaultServer}).Once()
	err = repo.Save(context.Background(), testSnapshot("s1", 3, time.Now()))
	require.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypePersistence))
	assert.Equal(t, "ProvisionedThroughputExceededException", pkgerrors.GetAppError(err).Details["awsErrorCode"])
}

func TestSnapshotRepository_Load(t *testing.T) {
	client := new(MockDynamoDB)
	repo := NewSnapshotRepository(client, "mindmap", nil)
	snap := testSnapshot("s1", 3, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))

	item, err := attributevalue.MarshalMap(snapshotItem{
		PK: sessionPK("s1"), SK: snapshotKey, EntityType: entityType,
		SessionID: "s1", Version: 3, Snapshot: *snap,
	})
	require.NoError(t, err)

	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item}, nil).Once()
	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()

	got, err := repo.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Write a novel", got.Goal)
	assert.Equal(t, 3, got.Version)
	assert.True(t, got.UpdatedAt.Equal(snap.UpdatedAt))
	require.Len(t, got.Nodes, 1)

	_, err = repo.Load(context.Background(), "s2")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSnapshotRepository_ListPagesAndSorts(t *testing.T) {
	client := new(MockDynamoDB)
	repo := NewSnapshotRepository(client, "mindmap", nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	summary := func(id string, at time.Time) map[string]types.AttributeValue {
		item, err := attributevalue.MarshalMap(map[string]interface{}{
			"SessionID": id, "Goal": "g-" + id, "NodeCount": 2, "Version": 1,
			"UpdatedAt": at.Format(time.RFC3339Nano),
		})
		require.NoError(t, err)
		return item
	}

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items:            []map[string]types.AttributeValue{summary("a", base)},
		LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "SESSION#a"}},
	}, nil).Once()
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{summary("b", base.Add(time.Hour))},
	}, nil).Once()

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].SessionID)
	assert.Equal(t, "g-a", list[1].Goal)
	client.AssertExpectations(t)
}

func TestSnapshotRepository_Delete(t *testing.T) {
	client := new(MockDynamoDB)
	repo := NewSnapshotRepository(client, "mindmap", nil)

	client.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		pk := in.Key["PK"].(*types.AttributeValueMemberS)
		return pk.Value == "SESSION#s1"
	})).Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	client.AssertExpectations(t)
}

func strPtr(s string) *string { return &s }
