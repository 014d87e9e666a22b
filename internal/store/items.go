// Package store implements item-level access to the recipe table: single-item
// CRUD plus query/scan passthrough, and the retrying batch writer used by the
// bulk loader. All item payloads cross the wire through the codec package, so
// callers work with plain map[string]interface{} values.
package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/souschef/souschef/internal/codec"
	"github.com/souschef/souschef/internal/logging"
)

// ItemAPI is the subset of the DynamoDB API used for item operations
type ItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ItemStore provides single-item and read operations against one table
type ItemStore struct {
	api    ItemAPI
	table  string
	logger *logging.Logger
}

// NewItemStore creates an item store bound to the given table
func NewItemStore(api ItemAPI, table string) *ItemStore {
	return &ItemStore{
		api:    api,
		table:  table,
		logger: logging.NewLogger("store"),
	}
}

// QueryOptions carries the optional parts of a Query or Scan request.
// Expression names and values pass through untranslated so callers can use
// the full server-side expression grammar.
type QueryOptions struct {
	FilterExpression string
	Names            map[string]string
	Values           map[string]interface{}
	Limit            int32
}

// Put writes a single item, replacing any existing item with the same key
func (s *ItemStore) Put(ctx context.Context, item map[string]interface{}) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      codec.Marshal(item),
	})
	if err != nil {
		return fmt.Errorf("put item in %s: %w", s.table, err)
	}
	return nil
}

// Get fetches a single item by key. A missing item returns (nil, nil).
func (s *ItemStore) Get(ctx context.Context, key map[string]interface{}) (map[string]interface{}, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       codec.Marshal(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get item from %s: %w", s.table, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return codec.Unmarshal(out.Item), nil
}

// Query runs a key-condition query, following pagination until exhausted
func (s *ItemStore) Query(ctx context.Context, keyCondition string, opts QueryOptions) ([]map[string]interface{}, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String(keyCondition),
	}
	applyQueryOptions(opts, &input.FilterExpression, &input.ExpressionAttributeNames, &input.ExpressionAttributeValues, &input.Limit)

	var items []map[string]interface{}
	for {
		out, err := s.api.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.table, err)
		}
		for _, raw := range out.Items {
			items = append(items, codec.Unmarshal(raw))
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Scan runs a full-table scan with an optional filter expression, following
// pagination until exhausted
func (s *ItemStore) Scan(ctx context.Context, opts QueryOptions) ([]map[string]interface{}, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	}
	applyQueryOptions(opts, &input.FilterExpression, &input.ExpressionAttributeNames, &input.ExpressionAttributeValues, &input.Limit)

	var items []map[string]interface{}
	for {
		out, err := s.api.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		for _, raw := range out.Items {
			items = append(items, codec.Unmarshal(raw))
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Update applies an update expression to the item with the given key
func (s *ItemStore) Update(ctx context.Context, key map[string]interface{}, updateExpression string, opts QueryOptions) error {
	input := &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              codec.Marshal(key),
		UpdateExpression: aws.String(updateExpression),
	}
	if len(opts.Names) > 0 {
		input.ExpressionAttributeNames = opts.Names
	}
	if len(opts.Values) > 0 {
		input.ExpressionAttributeValues = marshalExpressionValues(opts.Values)
	}
	if _, err := s.api.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("update item in %s: %w", s.table, err)
	}
	return nil
}

// Delete removes the item with the given key. Deleting a missing item is a
// no-op on the server side and succeeds here too.
func (s *ItemStore) Delete(ctx context.Context, key map[string]interface{}) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       codec.Marshal(key),
	})
	if err != nil {
		return fmt.Errorf("delete item from %s: %w", s.table, err)
	}
	return nil
}

func applyQueryOptions(opts QueryOptions, filter **string, names *map[string]string, values *map[string]dynamodbtypes.AttributeValue, limit **int32) {
	if opts.FilterExpression != "" {
		*filter = aws.String(opts.FilterExpression)
	}
	if len(opts.Names) > 0 {
		*names = opts.Names
	}
	if len(opts.Values) > 0 {
		*values = marshalExpressionValues(opts.Values)
	}
	if opts.Limit > 0 {
		*limit = aws.Int32(opts.Limit)
	}
}

// marshalExpressionValues encodes expression placeholder values. Placeholder
// keys start with ":" so they go through MarshalValue directly rather than
// the top-level item marshal.
func marshalExpressionValues(values map[string]interface{}) map[string]dynamodbtypes.AttributeValue {
	out := make(map[string]dynamodbtypes.AttributeValue, len(values))
	for k, v := range values {
		out[k] = codec.MarshalValue(v)
	}
	return out
}
