package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	pkgerrors "mindmap-backend/pkg/errors"
)

const (
	entityType  = "SNAPSHOT"
	snapshotKey = "SNAPSHOT"
)

// API is the subset of the DynamoDB client the repository uses
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// snapshotItem is the single-table item for one session
type snapshotItem struct {
	PK         string         `dynamodbav:"PK"`
	SK         string         `dynamodbav:"SK"`
	EntityType string         `dynamodbav:"EntityType"`
	SessionID  string         `dynamodbav:"SessionID"`
	Goal       string         `dynamodbav:"Goal"`
	NodeCount  int            `dynamodbav:"NodeCount"`
	Version    int            `dynamodbav:"Version"`
	UpdatedAt  string         `dynamodbav:"UpdatedAt"`
	Snapshot   ports.Snapshot `dynamodbav:"Snapshot"`
}

// SnapshotRepository persists snapshots in a DynamoDB table keyed by PK/SK
type SnapshotRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewSnapshotRepository creates a repository over the given table
func NewSnapshotRepository(client API, tableName string, logger *zap.Logger) *SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRepository{client: client, tableName: tableName, logger: logger}
}

func sessionPK(id string) string {
	return fmt.Sprintf("SESSION#%s", id)
}

func (r *SnapshotRepository) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
		"SK": &types.AttributeValueMemberS{Value: snapshotKey},
	}
}

// Save writes the snapshot if no newer version is stored
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *ports.Snapshot) error {
	if snapshot == nil || snapshot.SessionID == "" {
		return pkgerrors.NewValidationError("snapshot requires a session id")
	}

	item, err := attributevalue.MarshalMap(snapshotItem{
		PK:         sessionPK(snapshot.SessionID),
		SK:         snapshotKey,
		EntityType: entityType,
		SessionID:  snapshot.SessionID,
		Goal:       snapshot.Goal,
		NodeCount:  len(snapshot.Nodes),
		Version:    snapshot.Version,
		UpdatedAt:  snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Snapshot:   *snapshot,
	})
	if err != nil {
		return pkgerrors.NewPersistenceError("marshal snapshot", err)
	}

	condition := expression.Or(
		expression.Name("PK").AttributeNotExists(),
		expression.Name("Version").LessThan(expression.Value(snapshot.Version)),
	)
	expr, err := expression.NewBuilder().WithCondition(condition).Build()
	if err != nil {
		return pkgerrors.NewPersistenceError("build condition", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError(fmt.Sprintf("snapshot version %d is not newer than the stored one", snapshot.Version))
		}
		return r.persistenceError("save snapshot", err)
	}

	r.logger.Debug("snapshot saved",
		zap.String("session_id", snapshot.SessionID),
		zap.Int("version", snapshot.Version),
		zap.Int("nodes", len(snapshot.Nodes)),
	)
	return nil
}

// Load reads one snapshot
func (r *SnapshotRepository) Load(ctx context.Context, sessionID string) (*ports.Snapshot, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, r.persistenceError("load snapshot", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("session")
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewPersistenceError("decode snapshot", err)
	}
	return &item.Snapshot, nil
}

// List scans summaries of every stored snapshot, most recent first
func (r *SnapshotRepository) List(ctx context.Context) ([]ports.SessionSummary, error) {
	proj := expression.NamesList(
		expression.Name("SessionID"),
		expression.Name("Goal"),
		expression.Name("NodeCount"),
		expression.Name("Version"),
		expression.Name("UpdatedAt"),
	)
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityType))).
		WithProjection(proj).
		Build()
	if err != nil {
		return nil, pkgerrors.NewPersistenceError("build scan", err)
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	out := []ports.SessionSummary{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, r.persistenceError("list snapshots", err)
		}
		for _, raw := range page.Items {
			var item snapshotItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("skipping undecodable snapshot item", zap.Error(err))
				continue
			}
			updated, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
			out = append(out, ports.SessionSummary{
				SessionID: item.SessionID,
				Goal:      item.Goal,
				NodeCount: item.NodeCount,
				Version:   item.Version,
				UpdatedAt: updated,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a snapshot
func (r *SnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.key(sessionID),
	})
	if err != nil {
		return r.persistenceError("delete snapshot", err)
	}
	return nil
}

// persistenceError tags AWS API failures with their error code
func (r *SnapshotRepository) persistenceError(op string, err error) error {
	appErr := pkgerrors.NewPersistenceError(op, err)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		r.logger.Warn("dynamodb request failed",
			zap.String("operation", op),
			zap.String("code", apiErr.ErrorCode()),
			zap.String("fault", apiErr.ErrorFault().String()),
		)
		return appErr.WithDetails(map[string]interface{}{"awsErrorCode": apiErr.ErrorCode()})
	}
	return appErr
}
