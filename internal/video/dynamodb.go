package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Compile-time check that DynamoDBRepository implements Repository.
var _ Repository = (*DynamoDBRepository)(nil)

// dynamoAPI is the subset of the DynamoDB client used by the repository.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoItem is the stored shape of a Video.
type dynamoItem struct {
	ID           string    `dynamodbav:"id"`
	UserID       string    `dynamodbav:"user_id"`
	Title        string    `dynamodbav:"title"`
	Description  string    `dynamodbav:"description"`
	ThumbnailURL string    `dynamodbav:"thumbnail_url"`
	VideoURL     string    `dynamodbav:"video_url"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
}

// DynamoDBRepository stores videos in a DynamoDB table keyed by "id".
type DynamoDBRepository struct {
	client dynamoAPI
	table  string
}

// NewDynamoDBRepository creates a repository on the given table.
func NewDynamoDBRepository(client *dynamodb.Client, table string) *DynamoDBRepository {
	return newDynamoDBRepository(client, table)
}

func newDynamoDBRepository(client dynamoAPI, table string) *DynamoDBRepository {
	return &DynamoDBRepository{client: client, table: table}
}

func (r *DynamoDBRepository) Create(ctx context.Context, v *Video) error {
	return r.put(ctx, v, "attribute_not_exists(id)", ErrAlreadyExists)
}

func (r *DynamoDBRepository) Save(ctx context.Context, v *Video) error {
	return r.put(ctx, v, "attribute_exists(id)", ErrNotFound)
}

func (r *DynamoDBRepository) put(ctx context.Context, v *Video, condition string, conditionErr error) error {
	item, err := attributevalue.MarshalMap(toDynamoItem(v))
	if err != nil {
		return fmt.Errorf("marshal video: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return conditionErr
		}
		return fmt.Errorf("put video: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) FindByID(ctx context.Context, id string) (*Video, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal video: %w", err)
	}
	return item.toVideo(), nil
}

func (r *DynamoDBRepository) ListByUser(ctx context.Context, userID string) ([]*Video, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.table),
		FilterExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}

	result := make([]*Video, 0)
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan videos: %w", err)
		}

		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal videos: %w", err)
		}
		for i := range items {
			result = append(result, items[i].toVideo())
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sortNewestFirst(result)
	return result, nil
}

func toDynamoItem(v *Video) dynamoItem {
	return dynamoItem{
		ID:           v.ID,
		UserID:       v.UserID,
		Title:        v.Title,
		Description:  v.Description,
		ThumbnailURL: v.ThumbnailURL,
		VideoURL:     v.VideoURL,
		CreatedAt:    v.CreatedAt.UTC(),
		UpdatedAt:    v.UpdatedAt.UTC(),
	}
}

func (i dynamoItem) toVideo() *Video {
	return &Video{
		ID:           i.ID,
		UserID:       i.UserID,
		Title:        i.Title,
		Description:  i.Description,
		ThumbnailURL: i.ThumbnailURL,
		VideoURL:     i.VideoURL,
		CreatedAt:    i.CreatedAt.UTC(),
		UpdatedAt:    i.UpdatedAt.UTC(),
	}
}
