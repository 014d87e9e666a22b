// Package awsclient provides shared AWS client construction with optional
// custom endpoints for LocalStack-based testing.
package awsclient

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Clients bundles the AWS service clients the orchestrators use
type Clients struct {
	EC2      *ec2.Client
	IAM      *iam.Client
	DynamoDB *dynamodb.Client
	S3       *s3.Client
}

// New constructs the service clients for a region and optional custom endpoint
func New(ctx context.Context, region, endpoint string) (*Clients, error) {
	awsCfg, err := loadConfigForEndpoint(ctx, region, endpoint)
	if err != nil {
		return nil, err
	}

	return &Clients{
		EC2:      newEC2Client(awsCfg, endpoint),
		IAM:      newIAMClient(awsCfg, endpoint),
		DynamoDB: newDynamoDBClient(awsCfg, endpoint),
		S3:       newS3Client(awsCfg, endpoint),
	}, nil
}

// isLocalStackOrTestEnv detects if we're running in a LocalStack or test environment
func isLocalStackOrTestEnv(endpoint string) bool {
	if endpoint != "" {
		endpointLower := strings.ToLower(endpoint)
		if strings.Contains(endpointLower, "localstack") || strings.Contains(endpointLower, "localhost") {
			return true
		}
	}

	if os.Getenv("SOUSCHEF_USE_LOCALSTACK") == "true" || os.Getenv("LOCALSTACK_ENDPOINT") != "" {
		return true
	}

	// Go test binaries carry a .test suffix
	if strings.HasSuffix(os.Args[0], ".test") {
		return true
	}

	return false
}

// loadConfigForEndpoint loads AWS configuration for a given region and endpoint
func loadConfigForEndpoint(ctx context.Context, region, endpoint string) (aws.Config, error) {
	configOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	// Use static test credentials for LocalStack/testing
	if isLocalStackOrTestEnv(endpoint) {
		configOptions = append(configOptions,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func newEC2Client(awsCfg aws.Config, endpoint string) *ec2.Client {
	if endpoint != "" {
		return ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return ec2.NewFromConfig(awsCfg)
}

func newIAMClient(awsCfg aws.Config, endpoint string) *iam.Client {
	if endpoint != "" {
		return iam.NewFromConfig(awsCfg, func(o *iam.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return iam.NewFromConfig(awsCfg)
}

func newDynamoDBClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	if endpoint != "" {
		return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return dynamodb.NewFromConfig(awsCfg)
}

func newS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	if endpoint != "" {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // Required for LocalStack
		})
	}
	return s3.NewFromConfig(awsCfg)
}
