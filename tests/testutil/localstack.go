// Package testutil provides shared helpers for souschef integration tests
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

// LocalStackContainer holds the test LocalStack container and connection details
type LocalStackContainer struct {
	Container testcontainers.Container
	Endpoint  string
}

// SetupLocalStack starts a LocalStack container with the service set the
// souschef managers touch. Each test gets its own container for isolation.
func SetupLocalStack(t *testing.T) *LocalStackContainer {
	t.Helper()
	return SetupLocalStackWithServices(t, "s3,dynamodb,sts,iam,ec2")
}

// SetupLocalStackWithServices starts a LocalStack container with specific services
func SetupLocalStackWithServices(t *testing.T, services string) *LocalStackContainer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := localstack.Run(ctx,
		"localstack/localstack:3.8.1",
		testcontainers.WithEnv(map[string]string{
			"SERVICES": services,
			"DEBUG":    "0",
		}),
	)
	if err != nil {
		t.Fatalf("Failed to start LocalStack container: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "4566/tcp")
	if err != nil {
		t.Fatalf("Failed to get LocalStack port: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get LocalStack host: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate LocalStack container: %v", err)
		}
	})

	return &LocalStackContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
	}
}

// GetEndpoint returns the LocalStack endpoint for this container
func (l *LocalStackContainer) GetEndpoint() string {
	return l.Endpoint
}
