package resource

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/souschef/souschef/internal/logging"
)

const (
	keyPairDuplicateCode = "InvalidKeyPair.Duplicate"
	keyPairNotFoundCode  = "InvalidKeyPair.NotFound"
)

// KeyPairAPI is the subset of the EC2 API the keypair manager uses
type KeyPairAPI interface {
	CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error)
	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error)
}

// KeyPairManager provisions the SSH keypair for the ETL instance and saves
// the private key material locally
type KeyPairManager struct {
	api    KeyPairAPI
	logger *logging.Logger
}

var _ Lifecycle = (*KeyPairManager)(nil)

// NewKeyPairManager creates a keypair manager backed by the given EC2 API
func NewKeyPairManager(api KeyPairAPI) *KeyPairManager {
	return &KeyPairManager{
		api:    api,
		logger: logging.NewLogger("keypair"),
	}
}

// Create creates the keypair and writes the PEM to keyPath with owner-only
// permissions. A duplicate name is success; the provider returns key
// material only once, so nothing is rewritten on the skip path.
func (m *KeyPairManager) Create(ctx context.Context, name, keyPath string) error {
	out, err := m.api.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil {
		if errorCode(err) == keyPairDuplicateCode {
			m.logger.Infof("keypair %q already exists, skipping create", name)
			return nil
		}
		return fmt.Errorf("failed to create keypair %q: %w", name, err)
	}

	if err := os.WriteFile(keyPath, []byte(aws.ToString(out.KeyMaterial)), 0o600); err != nil {
		return fmt.Errorf("failed to write private key to %s: %w", keyPath, err)
	}
	m.logger.Infof("created keypair %q, private key at %s", name, keyPath)
	return nil
}

// Describe reports whether the keypair exists
func (m *KeyPairManager) Describe(ctx context.Context, name string) (Status, error) {
	out, err := m.api.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{name},
	})
	if err != nil {
		if errorCode(err) == keyPairNotFoundCode {
			return StatusDeleted, nil
		}
		return StatusFailed, fmt.Errorf("failed to describe keypair %q: %w", name, err)
	}
	if len(out.KeyPairs) == 0 {
		return StatusDeleted, nil
	}
	return StatusActive, nil
}

// Delete removes the keypair by name. A missing keypair is ErrNotFound.
func (m *KeyPairManager) Delete(ctx context.Context, name string) error {
	_, err := m.api.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: aws.String(name)})
	if err != nil {
		if errorCode(err) == keyPairNotFoundCode {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete keypair %q: %w", name, err)
	}
	m.logger.Infof("deleted keypair %q", name)
	return nil
}
