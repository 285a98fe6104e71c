package timeline

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

const (
	// DynamoDB BatchWriteItem accepts at most 25 put requests.
	dynamoBatchLimit = 25
	ownerIndexName   = "UserPostsIndex"
	// Fixed width so the created_at range key sorts lexically.
	dynamoTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

var ErrUnprocessedItems = errors.New("dynamodb left items unprocessed")

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoItem keeps one row per (post, owner): the table key is "<postID>_<ownerID>",
// so a repeated PutRequest replaces the same item.
type dynamoItem struct {
	Key        string `dynamodbav:"post_id"`
	PostID     string `dynamodbav:"source_post_id"`
	OwnerID    string `dynamodbav:"user_id"`
	AuthorID   string `dynamodbav:"author_id"`
	AuthorName string `dynamodbav:"username"`
	Content    string `dynamodbav:"content"`
	CreatedAt  string `dynamodbav:"created_at"`
}

func itemKey(ownerID, postID string) string {
	return fmt.Sprintf("%s_%s", postID, ownerID)
}

type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) Upsert(ctx context.Context, entries []Entry) error {
	for i := 0; i < len(entries); i += dynamoBatchLimit {
		end := i + dynamoBatchLimit
		if end > len(entries) {
			end = len(entries)
		}
		if err := s.writeBatch(ctx, entries[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *DynamoStore) writeBatch(ctx context.Context, entries []Entry) error {
	writeRequests := make([]types.WriteRequest, 0, len(entries))
	for _, e := range entries {
		item, err := attributevalue.MarshalMap(dynamoItem{
			Key:        itemKey(e.OwnerID, e.PostID),
			PostID:     e.PostID,
			OwnerID:    e.OwnerID,
			AuthorID:   e.AuthorID,
			AuthorName: e.AuthorName,
			Content:    e.Content,
			CreatedAt:  e.CreatedAt.UTC().Format(dynamoTimeLayout),
		})
		if err != nil {
			return fmt.Errorf("marshal timeline entry: %w", err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.tableName: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("batch write timeline entries: %w", err)
	}
	// No inline retry: the caller's message is redelivered instead.
	if out != nil && len(out.UnprocessedItems[s.tableName]) > 0 {
		return fmt.Errorf("%w: %d of %d", ErrUnprocessedItems, len(out.UnprocessedItems[s.tableName]), len(entries))
	}
	return nil
}

func (s *DynamoStore) QueryByOwner(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(ownerIndexName),
		KeyConditionExpression: aws.String("user_id = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: ownerID},
		},
		ScanIndexForward: aws.Bool(false), // newest first
	}
	if limit > 0 {
		// One extra item shows whether the boundary timestamp continues.
		input.Limit = aws.Int32(int32(limit + 1))
	}

	// The index orders by created_at only, so entries sharing the timestamp
	// at the limit boundary can come back in any post id order. Keep reading
	// until the boundary timestamp is passed, then sort and cut.
	var items []dynamoItem
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query timeline: %w", err)
		}

		var page []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timeline entries: %w", err)
		}
		items = append(items, page...)

		if limit > 0 && pastBoundary(items, limit) {
			break
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		createdAt, err := time.Parse(dynamoTimeLayout, it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", it.Key, err)
		}
		entries = append(entries, Entry{
			OwnerID:    it.OwnerID,
			PostID:     it.PostID,
			AuthorID:   it.AuthorID,
			AuthorName: it.AuthorName,
			Content:    it.Content,
			CreatedAt:  createdAt,
		})
	}
	SortNewestFirst(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// pastBoundary reports whether items, in index order, already hold every
// entry that can rank within the first limit.
func pastBoundary(items []dynamoItem, limit int) bool {
	if len(items) <= limit {
		return false
	}
	return items[len(items)-1].CreatedAt != items[limit-1].CreatedAt
}
