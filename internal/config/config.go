// Package config holds the static resource-name configuration for the
// souschef cloud environment. Every orchestrator and manager receives a
// Config at construction instead of reading ambient globals, so tests can
// run against different resource names.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/souschef/souschef/pkg/logging"
)

// Config holds all configuration for provisioning, teardown, and table loading
type Config struct {
	// AWS settings
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // For LocalStack or custom endpoints

	// VPC
	VPCName           string `yaml:"vpc_name"`
	VPCCIDR           string `yaml:"vpc_cidr"`
	SubnetName        string `yaml:"subnet_name"`
	SubnetCIDR        string `yaml:"subnet_cidr"`
	SecurityGroupName string `yaml:"security_group_name"`
	SecurityGroupDesc string `yaml:"security_group_description"`

	// S3
	RawBucket   string `yaml:"raw_bucket"`
	CleanBucket string `yaml:"clean_bucket"`

	// IAM
	RoleName        string   `yaml:"role_name"`
	ProfileName     string   `yaml:"instance_profile_name"`
	ManagedPolicies []string `yaml:"managed_policies"`
	LoaderPolicy    string   `yaml:"loader_policy"`

	// EC2
	KeyPairName  string `yaml:"key_pair_name"`
	KeyPairPath  string `yaml:"key_pair_path"`
	InstanceName string `yaml:"instance_name"`
	ImageID      string `yaml:"image_id"`
	InstanceType string `yaml:"instance_type"`
	UserData     string `yaml:"user_data"` // Opaque startup script blob

	// DynamoDB
	TableName    string `yaml:"table_name"`
	PartitionKey string `yaml:"partition_key"`

	// Loader
	RecipePrefix string `yaml:"recipe_prefix"`
	WindowSize   int    `yaml:"window_size"`

	// Propagation delays and poll timeouts
	IdentityPropagationDelay time.Duration `yaml:"identity_propagation_delay"`
	PublicIPDelay            time.Duration `yaml:"public_ip_delay"`
	TableActiveTimeout       time.Duration `yaml:"table_active_timeout"`
	TerminateTimeout         time.Duration `yaml:"terminate_timeout"`
	PollInterval             time.Duration `yaml:"poll_interval"`
}

// Default returns the configuration the production environment uses
func Default() *Config {
	return &Config{
		Region: "us-east-1",

		VPCName:           "souschef-vpc",
		VPCCIDR:           "10.0.0.0/16",
		SubnetName:        "souschef-subnet",
		SubnetCIDR:        "10.0.1.0/24",
		SecurityGroupName: "souschef-security-group",
		SecurityGroupDesc: "Souschef ETL security group",

		RawBucket:   "souschef-data-raw",
		CleanBucket: "souschef-data-clean",

		RoleName:    "souschef-ec2-role",
		ProfileName: "souschef-ec2-profile",
		ManagedPolicies: []string{
			"arn:aws:iam::aws:policy/AmazonS3FullAccess",
			"arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore",
			"arn:aws:iam::aws:policy/CloudWatchLogsFullAccess",
			"arn:aws:iam::aws:policy/AmazonSSMReadOnlyAccess",
		},
		LoaderPolicy: "arn:aws:iam::aws:policy/AmazonDynamoDBFullAccess",

		KeyPairName:  "souschef-key-pair",
		KeyPairPath:  "souschef-key-pair.pem",
		InstanceName: "souschef-etl",
		ImageID:      "ami-0fa3fe0fa7920f68e", // Amazon Linux 2023
		InstanceType: "t3.small",

		TableName:    "souschef-recipes",
		PartitionKey: "recipe_id",

		RecipePrefix: "recipes/",
		WindowSize:   500,

		IdentityPropagationDelay: 15 * time.Second,
		PublicIPDelay:            30 * time.Second,
		TableActiveTimeout:       120 * time.Second,
		TerminateTimeout:         120 * time.Second,
		PollInterval:             5 * time.Second,
	}
}

// Load builds a Config from defaults, an optional YAML file, and environment
// overrides, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - path is a validated CLI argument
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logging.Config.Debug("loaded configuration from %s", path)
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv applies SOUSCHEF_* environment overrides
func (c *Config) loadFromEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Region, "SOUSCHEF_AWS_REGION")
	setString(&c.Endpoint, "SOUSCHEF_AWS_ENDPOINT")
	setString(&c.RawBucket, "SOUSCHEF_RAW_BUCKET")
	setString(&c.CleanBucket, "SOUSCHEF_CLEAN_BUCKET")
	setString(&c.TableName, "SOUSCHEF_TABLE_NAME")
	setString(&c.ImageID, "SOUSCHEF_IMAGE_ID")
	setString(&c.InstanceType, "SOUSCHEF_INSTANCE_TYPE")

	if v := os.Getenv("SOUSCHEF_IDENTITY_PROPAGATION_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.IdentityPropagationDelay = d
		}
	}
	if v := os.Getenv("SOUSCHEF_PUBLIC_IP_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PublicIPDelay = d
		}
	}
}

// Validate checks that required fields are present
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.VPCName == "" {
		return fmt.Errorf("vpc name is required")
	}
	if c.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if c.PartitionKey == "" {
		return fmt.Errorf("partition key is required")
	}
	if c.CleanBucket == "" {
		return fmt.Errorf("clean bucket name is required")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive")
	}
	return nil
}
