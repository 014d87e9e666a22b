package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/souschef/souschef/internal/logging"
)

// BucketAPI is the subset of the S3 API the bucket manager uses
type BucketAPI interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// BucketManager provisions the object store buckets and moves recipe
// objects in and out of them
type BucketManager struct {
	api    BucketAPI
	region string
	logger *logging.Logger
}

var _ Lifecycle = (*BucketManager)(nil)

// NewBucketManager creates a bucket manager backed by the given S3 API
func NewBucketManager(api BucketAPI, region string) *BucketManager {
	return &BucketManager{
		api:    api,
		region: region,
		logger: logging.NewLogger("bucket"),
	}
}

// Create creates a bucket. A bucket we already own is success.
func (m *BucketManager) Create(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint
	if m.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(m.region),
		}
	}

	_, err := m.api.CreateBucket(ctx, input)
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			m.logger.Infof("bucket %q already exists, skipping create", bucket)
			return nil
		}
		return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}
	m.logger.Infof("created bucket %q", bucket)
	return nil
}

// Describe reports whether the bucket exists
func (m *BucketManager) Describe(ctx context.Context, bucket string) (Status, error) {
	_, err := m.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isNoSuchBucket(err) {
			return StatusDeleted, nil
		}
		return StatusFailed, fmt.Errorf("failed to head bucket %q: %w", bucket, err)
	}
	return StatusActive, nil
}

// Delete removes an empty bucket. A missing bucket is ErrNotFound.
func (m *BucketManager) Delete(ctx context.Context, bucket string) error {
	_, err := m.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isNoSuchBucket(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete bucket %q: %w", bucket, err)
	}
	m.logger.Infof("deleted bucket %q", bucket)
	return nil
}

// ListKeys returns all object keys under a prefix, following pagination
func (m *BucketManager) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	for {
		out, err := m.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %q: %w", bucket, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return keys, nil
}

// Get fetches an object's full contents
func (m *BucketManager) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := m.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put uploads an object
func (m *BucketManager) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := m.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Empty deletes every object in the bucket, in batches of up to 1000 keys
func (m *BucketManager) Empty(ctx context.Context, bucket string) (int, error) {
	keys, err := m.ListKeys(ctx, bucket, "")
	if err != nil {
		if isNoSuchBucket(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	deleted := 0
	const deleteBatch = 1000
	for start := 0; start < len(keys); start += deleteBatch {
		end := start + deleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		identifiers := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			identifiers = append(identifiers, s3types.ObjectIdentifier{Key: aws.String(key)})
		}

		_, err := m.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{Objects: identifiers},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete objects from %q: %w", bucket, err)
		}
		deleted += end - start
	}

	if deleted > 0 {
		m.logger.Infof("deleted %d objects from bucket %q", deleted, bucket)
	}
	return deleted, nil
}

func isNoSuchBucket(err error) bool {
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	// HeadBucket reports a generic 404 rather than a typed NoSuchBucket
	code := errorCode(err)
	return code == "NotFound" || code == "NoSuchBucket"
}
