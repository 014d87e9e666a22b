package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/souschef/souschef/internal/codec"
	"github.com/souschef/souschef/internal/logging"
)

const (
	// maxBatchSize is the DynamoDB BatchWriteItem request limit
	maxBatchSize = 25

	// maxSubmissions bounds the retry loop per chunk, counting the first
	// submission
	maxSubmissions = 5

	baseRetryDelay = 100 * time.Millisecond
)

// BatchAPI is the subset of the DynamoDB API the batch writer uses
type BatchAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// LoadResult aggregates the outcome of a batch load. Written and Failed only
// ever grow, and Written+Failed equals the number of items submitted.
type LoadResult struct {
	Written int
	Failed  int
}

// BatchWriter writes item batches with retry on partial throttling. Chunks
// are submitted sequentially; within a chunk, unprocessed items are
// resubmitted with exponential backoff until maxSubmissions is exhausted.
type BatchWriter struct {
	api    BatchAPI
	logger *logging.Logger
	sleep  func(time.Duration)
}

// NewBatchWriter creates a batch writer backed by the given DynamoDB API
func NewBatchWriter(api BatchAPI) *BatchWriter {
	return &BatchWriter{
		api:    api,
		logger: logging.NewLogger("batch"),
		sleep:  time.Sleep,
	}
}

// Write loads items into the table in chunks of 25. Items missing the keyAttr
// attribute are counted as failed before any request is made. A hard request
// error fails the whole remaining chunk; partial unprocessed responses are
// retried with backoff. The returned result always accounts for every item.
func (w *BatchWriter) Write(ctx context.Context, table string, items []map[string]interface{}, keyAttr string) LoadResult {
	var result LoadResult
	if len(items) == 0 {
		return result
	}

	valid := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if v, ok := item[keyAttr]; !ok || v == nil {
			w.logger.Warnf("dropping item missing key attribute %q", keyAttr)
			result.Failed++
			continue
		}
		valid = append(valid, item)
	}

	for start := 0; start < len(valid); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := w.writeChunk(ctx, table, valid[start:end])
		result.Written += chunk.Written
		result.Failed += chunk.Failed
	}
	return result
}

// writeChunk submits one chunk, resubmitting the unprocessed remainder until
// it drains or the submission budget runs out
func (w *BatchWriter) writeChunk(ctx context.Context, table string, items []map[string]interface{}) LoadResult {
	var result LoadResult

	pending := make([]dynamodbtypes.WriteRequest, 0, len(items))
	for _, item := range items {
		pending = append(pending, dynamodbtypes.WriteRequest{
			PutRequest: &dynamodbtypes.PutRequest{Item: codec.Marshal(item)},
		})
	}

	for attempt := 0; attempt < maxSubmissions; attempt++ {
		if attempt > 0 {
			w.sleep(time.Duration(1<<attempt) * baseRetryDelay)
		}
		out, err := w.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dynamodbtypes.WriteRequest{
				table: pending,
			},
		})
		if err != nil {
			w.logger.Errorf("batch write to %s failed, abandoning %d items: %v", table, len(pending), err)
			result.Failed += len(pending)
			return result
		}

		unprocessed := out.UnprocessedItems[table]
		result.Written += len(pending) - len(unprocessed)
		if len(unprocessed) == 0 {
			return result
		}
		w.logger.Debugf("batch write to %s left %d unprocessed on attempt %d", table, len(unprocessed), attempt+1)
		pending = unprocessed
	}

	w.logger.Warnf("batch write to %s exhausted retries with %d items unprocessed", table, len(pending))
	result.Failed += len(pending)
	return result
}
