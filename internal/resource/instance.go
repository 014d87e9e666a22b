package resource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/hashicorp/go-uuid"

	"github.com/souschef/souschef/internal/logging"
	"github.com/souschef/souschef/internal/waiter"
)

// InstanceAPI is the subset of the EC2 API the instance manager uses
type InstanceAPI interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// LaunchSpec describes the compute instance to launch
type LaunchSpec struct {
	Name            string
	ImageID         string
	InstanceType    string
	SubnetID        string
	KeyName         string
	SecurityGroups  []string
	InstanceProfile string
	UserData        string // Opaque startup script, passed through unparsed
}

// InstanceManager launches and terminates the ETL compute instance,
// resolving it by Name tag rather than stored ids
type InstanceManager struct {
	api    InstanceAPI
	logger *logging.Logger
}

// NewInstanceManager creates an instance manager backed by the given EC2 API
func NewInstanceManager(api InstanceAPI) *InstanceManager {
	return &InstanceManager{
		api:    api,
		logger: logging.NewLogger("instance"),
	}
}

// Launch starts a single instance described by spec and returns its id. An
// instance with the same Name tag that is not terminated is reused instead
// of launching a duplicate.
func (m *InstanceManager) Launch(ctx context.Context, spec LaunchSpec) (string, error) {
	if existing, err := m.FindByName(ctx, spec.Name); err == nil {
		m.logger.Infof("instance %q already running (%s), skipping launch", spec.Name, existing)
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	// The client token makes a retried RunInstances call land on the same
	// instance instead of launching a second one
	token, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("failed to generate client token: %w", err)
	}

	input := &ec2.RunInstancesInput{
		ImageId:          aws.String(spec.ImageID),
		InstanceType:     ec2types.InstanceType(spec.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SubnetId:         aws.String(spec.SubnetID),
		KeyName:          aws.String(spec.KeyName),
		SecurityGroupIds: spec.SecurityGroups,
		ClientToken:      aws.String(token),
		IamInstanceProfile: &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(spec.InstanceProfile),
		},
		TagSpecifications: nameTagSpec(ec2types.ResourceTypeInstance, Spec{Kind: "instance", Name: spec.Name}),
	}
	if spec.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData)))
	}

	out, err := m.api.RunInstances(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to launch instance %q: %w", spec.Name, err)
	}
	if len(out.Instances) == 0 {
		return "", fmt.Errorf("launch of %q returned no instances", spec.Name)
	}

	instanceID := aws.ToString(out.Instances[0].InstanceId)
	m.logger.Infof("launched instance %q (%s)", spec.Name, instanceID)
	return instanceID, nil
}

// FindByName resolves a non-terminated instance id by its Name tag
func (m *InstanceManager) FindByName(ctx context.Context, name string) (string, error) {
	out, err := m.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe instances: %w", err)
	}
	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			return aws.ToString(instance.InstanceId), nil
		}
	}
	return "", ErrNotFound
}

// Describe reports the status of the instance with the given Name tag
func (m *InstanceManager) Describe(ctx context.Context, name string) (Status, error) {
	if _, err := m.FindByName(ctx, name); err != nil {
		if errors.Is(err, ErrNotFound) {
			return StatusDeleted, nil
		}
		return StatusFailed, err
	}
	return StatusActive, nil
}

// PublicIP returns the public address of an instance, or "" if none is
// assigned yet
func (m *InstanceManager) PublicIP(ctx context.Context, instanceID string) (string, error) {
	out, err := m.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}
	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			return aws.ToString(instance.PublicIpAddress), nil
		}
	}
	return "", ErrNotFound
}

// Terminate submits termination for an instance
func (m *InstanceManager) Terminate(ctx context.Context, instanceID string) error {
	_, err := m.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("failed to terminate instance %s: %w", instanceID, err)
	}
	m.logger.Infof("terminating instance %s", instanceID)
	return nil
}

// WaitTerminated blocks until the instance reaches the terminated state.
// The VPC cannot be deleted while instances remain in it.
func (m *InstanceManager) WaitTerminated(ctx context.Context, instanceID string, interval, timeout time.Duration) bool {
	done, last := waiter.Until(ctx, func(ctx context.Context) (bool, string, error) {
		out, err := m.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			return false, "", err
		}
		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State == nil {
					return false, "", nil
				}
				state := string(instance.State.Name)
				return instance.State.Name == ec2types.InstanceStateNameTerminated, state, nil
			}
		}
		// Old terminated instances fall out of describe results entirely
		return true, string(StatusDeleted), nil
	}, interval, timeout)

	if !done {
		m.logger.Warnf("timeout waiting for instance %s to terminate (last state: %s)", instanceID, last)
	}
	return done
}
