package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/souschef/souschef/internal/logging"
	"github.com/souschef/souschef/internal/waiter"
)

// TableAPI is the subset of the DynamoDB API the table manager uses
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// TableManager provisions the managed key-value table holding the flattened
// recipe records
type TableManager struct {
	api    TableAPI
	logger *logging.Logger
}

var _ Lifecycle = (*TableManager)(nil)

// NewTableManager creates a table manager backed by the given DynamoDB API
func NewTableManager(api TableAPI) *TableManager {
	return &TableManager{
		api:    api,
		logger: logging.NewLogger("table"),
	}
}

// Create creates an on-demand table with a string partition key. A table
// that already exists is success.
func (m *TableManager) Create(ctx context.Context, tableName, partitionKey string) error {
	_, err := m.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []dynamodbtypes.KeySchemaElement{
			{
				AttributeName: aws.String(partitionKey),
				KeyType:       dynamodbtypes.KeyTypeHash,
			},
		},
		AttributeDefinitions: []dynamodbtypes.AttributeDefinition{
			{
				AttributeName: aws.String(partitionKey),
				AttributeType: dynamodbtypes.ScalarAttributeTypeS,
			},
		},
		BillingMode: dynamodbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *dynamodbtypes.ResourceInUseException
		if errors.As(err, &inUse) {
			m.logger.Infof("table %q already exists, skipping create", tableName)
			return nil
		}
		return fmt.Errorf("failed to create table %q: %w", tableName, err)
	}
	m.logger.Infof("created table %q", tableName)
	return nil
}

// Describe maps the provider table status onto the resource status model
func (m *TableManager) Describe(ctx context.Context, tableName string) (Status, error) {
	out, err := m.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		var notFound *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return StatusDeleted, nil
		}
		return StatusFailed, fmt.Errorf("failed to describe table %q: %w", tableName, err)
	}

	switch out.Table.TableStatus {
	case dynamodbtypes.TableStatusActive:
		return StatusActive, nil
	case dynamodbtypes.TableStatusCreating:
		return StatusCreating, nil
	case dynamodbtypes.TableStatusDeleting:
		return StatusDeleting, nil
	default:
		return StatusPending, nil
	}
}

// WaitActive polls the table status until it reports active or the timeout
// elapses. Returns the last observed status on failure.
func (m *TableManager) WaitActive(ctx context.Context, tableName string, interval, timeout time.Duration) (bool, Status) {
	done, last := waiter.Until(ctx, func(ctx context.Context) (bool, string, error) {
		status, err := m.Describe(ctx, tableName)
		if err != nil {
			return false, string(status), err
		}
		m.logger.Debugf("table %q status: %s", tableName, status)
		return status == StatusActive, string(status), nil
	}, interval, timeout)

	if !done {
		m.logger.Errorf("timeout waiting for table %q to become active (last status: %s)", tableName, last)
	}
	return done, Status(last)
}

// Delete removes the table. A missing table is ErrNotFound.
func (m *TableManager) Delete(ctx context.Context, tableName string) error {
	_, err := m.api.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(tableName)})
	if err != nil {
		var notFound *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete table %q: %w", tableName, err)
	}
	m.logger.Infof("deleted table %q", tableName)
	return nil
}
