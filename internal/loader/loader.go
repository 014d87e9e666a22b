// Package loader drives the bulk recipe load: it ensures the recipes table
// exists, pulls the cleaned recipe objects from the object store, flattens
// each into a searchable table item, and pushes them through the batch
// writer in fixed-size windows.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/souschef/souschef/internal/awsclient"
	"github.com/souschef/souschef/internal/config"
	"github.com/souschef/souschef/internal/logging"
	"github.com/souschef/souschef/internal/resource"
	"github.com/souschef/souschef/internal/store"
)

// Recipe is the canonical cleaned recipe document. Optional fields are
// pointers so absent and null values survive decoding and can be stripped
// from the flattened item.
type Recipe struct {
	ID          int64     `mapstructure:"id"`
	Name        string    `mapstructure:"name"`
	Description string    `mapstructure:"description"`
	Category    string    `mapstructure:"category"`
	Keywords    []string  `mapstructure:"keywords"`
	Author      string    `mapstructure:"author"`
	Nutrition   Nutrition `mapstructure:"nutrition"`
	Metadata    Metadata  `mapstructure:"metadata"`
}

// Nutrition holds the per-serving values hoisted to top level for filtering
type Nutrition struct {
	Calories *float64 `mapstructure:"calories"`
	Protein  *float64 `mapstructure:"protein"`
	Carbs    *float64 `mapstructure:"carbs"`
	Fat      *float64 `mapstructure:"fat"`
}

// Metadata holds the review and timing values hoisted to top level
type Metadata struct {
	AggregatedRating *float64 `mapstructure:"aggregated_rating"`
	ReviewCount      *int64   `mapstructure:"review_count"`
	PrepTime         *string  `mapstructure:"prep_time"`
	CookTime         *string  `mapstructure:"cook_time"`
	TotalTime        *string  `mapstructure:"total_time"`
}

type identityAttacher interface {
	AttachPolicy(ctx context.Context, roleName, policyArn string) error
}

type objectReader interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

type tableCreator interface {
	Create(ctx context.Context, tableName, partitionKey string) error
	WaitActive(ctx context.Context, tableName string, interval, timeout time.Duration) (bool, resource.Status)
}

type batchWriter interface {
	Write(ctx context.Context, table string, items []map[string]interface{}, keyAttr string) store.LoadResult
}

// TableLoader runs the end-to-end recipe load
type TableLoader struct {
	cfg      *config.Config
	identity identityAttacher
	bucket   objectReader
	table    tableCreator
	writer   batchWriter
	logger   *logging.Logger
}

// New creates a table loader over real AWS clients
func New(cfg *config.Config, clients *awsclient.Clients) *TableLoader {
	return &TableLoader{
		cfg:      cfg,
		identity: resource.NewIdentityManager(clients.IAM),
		bucket:   resource.NewBucketManager(clients.S3, cfg.Region),
		table:    resource.NewTableManager(clients.DynamoDB),
		writer:   store.NewBatchWriter(clients.DynamoDB),
		logger:   logging.NewLogger("loader"),
	}
}

// Run loads every recipe object under the configured prefix into the table.
// Objects that fail to fetch or parse count as failed rather than aborting
// the run; the returned result accounts for every qualifying key.
func (l *TableLoader) Run(ctx context.Context) (store.LoadResult, error) {
	var result store.LoadResult

	// The ETL role needs table write access before the instance-side loader
	// can run.
	if err := l.identity.AttachPolicy(ctx, l.cfg.RoleName, l.cfg.LoaderPolicy); err != nil {
		return result, fmt.Errorf("attach loader policy: %w", err)
	}

	if err := l.table.Create(ctx, l.cfg.TableName, l.cfg.PartitionKey); err != nil {
		return result, fmt.Errorf("create table %s: %w", l.cfg.TableName, err)
	}
	if ok, status := l.table.WaitActive(ctx, l.cfg.TableName, l.cfg.PollInterval, l.cfg.TableActiveTimeout); !ok {
		return result, fmt.Errorf("table %s never became active, last status %s", l.cfg.TableName, status)
	}

	keys, err := l.bucket.ListKeys(ctx, l.cfg.CleanBucket, l.cfg.RecipePrefix)
	if err != nil {
		return result, fmt.Errorf("list recipe objects: %w", err)
	}
	recipeKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, ".json") {
			recipeKeys = append(recipeKeys, key)
		}
	}
	if len(recipeKeys) == 0 {
		return result, fmt.Errorf("no recipe objects under %s/%s", l.cfg.CleanBucket, l.cfg.RecipePrefix)
	}
	l.logger.Infof("%d recipe files to process", len(recipeKeys))

	// Windowed so a large corpus never sits in memory all at once.
	for start := 0; start < len(recipeKeys); start += l.cfg.WindowSize {
		end := start + l.cfg.WindowSize
		if end > len(recipeKeys) {
			end = len(recipeKeys)
		}

		items := make([]map[string]interface{}, 0, end-start)
		for _, key := range recipeKeys[start:end] {
			item, err := l.fetchItem(ctx, key)
			if err != nil {
				l.logger.Warnf("skipping %s: %v", key, err)
				result.Failed++
				continue
			}
			items = append(items, item)
		}

		window := l.writer.Write(ctx, l.cfg.TableName, items, l.cfg.PartitionKey)
		result.Written += window.Written
		result.Failed += window.Failed
		l.logger.Infof("progress: %d/%d", end, len(recipeKeys))
	}

	l.logger.LoadSummary(l.cfg.TableName, result.Written, result.Failed)
	return result, nil
}

func (l *TableLoader) fetchItem(ctx context.Context, key string) (map[string]interface{}, error) {
	body, err := l.bucket.Get(ctx, l.cfg.CleanBucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	recipe, err := parseRecipe(body)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return flattenRecipe(recipe, l.cfg.RecipePrefix), nil
}

// parseRecipe decodes a recipe document, tolerating the loosely typed
// values the cleaning pipeline emits
func parseRecipe(body []byte) (*Recipe, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	var recipe Recipe
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &recipe,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}
	if recipe.ID == 0 {
		return nil, fmt.Errorf("recipe missing id")
	}
	return &recipe, nil
}

// flattenRecipe hoists the nutrition and metadata sub-documents to
// top-level attributes and attaches the object-store pointer. Null and NaN
// values are dropped so they never reach the table.
func flattenRecipe(r *Recipe, prefix string) map[string]interface{} {
	id := strconv.FormatInt(r.ID, 10)
	item := map[string]interface{}{
		"recipe_id":   id,
		"name":        r.Name,
		"description": r.Description,
		"category":    r.Category,
		"keywords":    r.Keywords,
		"author":      r.Author,
		"s3_key":      prefix + id + ".json",
	}
	putFloat(item, "calories", r.Nutrition.Calories)
	putFloat(item, "protein", r.Nutrition.Protein)
	putFloat(item, "carbs", r.Nutrition.Carbs)
	putFloat(item, "fat", r.Nutrition.Fat)
	putFloat(item, "rating", r.Metadata.AggregatedRating)
	if r.Metadata.ReviewCount != nil {
		item["review_count"] = *r.Metadata.ReviewCount
	}
	putString(item, "prep_time", r.Metadata.PrepTime)
	putString(item, "cook_time", r.Metadata.CookTime)
	putString(item, "total_time", r.Metadata.TotalTime)
	return item
}

func putFloat(item map[string]interface{}, key string, v *float64) {
	if v == nil || math.IsNaN(*v) {
		return
	}
	item[key] = *v
}

func putString(item map[string]interface{}, key string, v *string) {
	if v == nil {
		return
	}
	item[key] = *v
}
