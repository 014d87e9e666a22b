package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/souschef/souschef/internal/logging"
)

// EC2TrustPolicy is the assume-role document allowing EC2 to assume the ETL role
const EC2TrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ec2.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// IdentityAPI is the subset of the IAM API the identity manager uses
type IdentityAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	CreateInstanceProfile(ctx context.Context, params *iam.CreateInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error)
	GetInstanceProfile(ctx context.Context, params *iam.GetInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error)
	AddRoleToInstanceProfile(ctx context.Context, params *iam.AddRoleToInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error)
	RemoveRoleFromInstanceProfile(ctx context.Context, params *iam.RemoveRoleFromInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.RemoveRoleFromInstanceProfileOutput, error)
	DeleteInstanceProfile(ctx context.Context, params *iam.DeleteInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.DeleteInstanceProfileOutput, error)
}

// IdentityManager provisions the IAM role and instance profile the ETL
// instance runs under
type IdentityManager struct {
	api    IdentityAPI
	logger *logging.Logger
}

// NewIdentityManager creates an identity manager backed by the given IAM API
func NewIdentityManager(api IdentityAPI) *IdentityManager {
	return &IdentityManager{
		api:    api,
		logger: logging.NewLogger("identity"),
	}
}

// CreateRole creates a role with the given trust policy. An existing role
// with the same name is success.
func (m *IdentityManager) CreateRole(ctx context.Context, roleName, trustPolicy string) error {
	_, err := m.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	})
	if err != nil {
		var alreadyExists *iamtypes.EntityAlreadyExistsException
		if errors.As(err, &alreadyExists) {
			m.logger.Infof("role %q already exists, skipping create", roleName)
			return nil
		}
		return fmt.Errorf("failed to create role %q: %w", roleName, err)
	}
	m.logger.Infof("created role %q", roleName)
	return nil
}

// RoleARN returns the ARN of an existing role
func (m *IdentityManager) RoleARN(ctx context.Context, roleName string) (string, error) {
	out, err := m.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if errors.As(err, &notFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get role %q: %w", roleName, err)
	}
	return aws.ToString(out.Role.Arn), nil
}

// Describe reports whether the role exists
func (m *IdentityManager) Describe(ctx context.Context, roleName string) (Status, error) {
	if _, err := m.RoleARN(ctx, roleName); err != nil {
		if errors.Is(err, ErrNotFound) {
			return StatusDeleted, nil
		}
		return StatusFailed, err
	}
	return StatusActive, nil
}

// AttachPolicy attaches a managed policy to a role. Attaching is naturally
// idempotent; a repeated attach succeeds.
func (m *IdentityManager) AttachPolicy(ctx context.Context, roleName, policyArn string) error {
	_, err := m.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		var limitExceeded *iamtypes.LimitExceededException
		if errors.As(err, &limitExceeded) {
			m.logger.Infof("policy %q already attached to %q, skipping", policyArn, roleName)
			return nil
		}
		return fmt.Errorf("failed to attach policy %q to role %q: %w", policyArn, roleName, err)
	}
	m.logger.Infof("attached policy %q to role %q", policyArn, roleName)
	return nil
}

// CreateInstanceProfile creates an instance profile and binds the role to
// it. Existing profile and existing binding both count as success.
func (m *IdentityManager) CreateInstanceProfile(ctx context.Context, profileName, roleName string) error {
	_, err := m.api.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil {
		var alreadyExists *iamtypes.EntityAlreadyExistsException
		if !errors.As(err, &alreadyExists) {
			return fmt.Errorf("failed to create instance profile %q: %w", profileName, err)
		}
		m.logger.Infof("instance profile %q already exists, skipping create", profileName)
	} else {
		m.logger.Infof("created instance profile %q", profileName)
	}

	_, err = m.api.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil {
		// A profile holds at most one role, so a second add reports LimitExceeded
		var limitExceeded *iamtypes.LimitExceededException
		var alreadyExists *iamtypes.EntityAlreadyExistsException
		if errors.As(err, &limitExceeded) || errors.As(err, &alreadyExists) {
			m.logger.Infof("role %q already bound to profile %q, skipping", roleName, profileName)
			return nil
		}
		return fmt.Errorf("failed to add role %q to instance profile %q: %w", roleName, profileName, err)
	}
	m.logger.Infof("added role %q to instance profile %q", roleName, profileName)
	return nil
}

// DeleteInstanceProfile unbinds the role and deletes the profile. A missing
// profile is reported as ErrNotFound for the teardown sweep to tolerate.
func (m *IdentityManager) DeleteInstanceProfile(ctx context.Context, profileName, roleName string) error {
	_, err := m.api.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil && !isNoSuchEntity(err) {
		return fmt.Errorf("failed to remove role from instance profile %q: %w", profileName, err)
	}

	_, err = m.api.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil {
		if isNoSuchEntity(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete instance profile %q: %w", profileName, err)
	}
	m.logger.Infof("deleted instance profile %q", profileName)
	return nil
}

// DeleteRole detaches all managed policies and deletes the role. A missing
// role is reported as ErrNotFound.
func (m *IdentityManager) DeleteRole(ctx context.Context, roleName string) error {
	attached, err := m.api.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if isNoSuchEntity(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to list attached policies for role %q: %w", roleName, err)
	}

	for _, policy := range attached.AttachedPolicies {
		_, err := m.api.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil && !isNoSuchEntity(err) {
			return fmt.Errorf("failed to detach policy %q from role %q: %w", aws.ToString(policy.PolicyArn), roleName, err)
		}
	}

	if _, err := m.api.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)}); err != nil {
		if isNoSuchEntity(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete role %q: %w", roleName, err)
	}
	m.logger.Infof("deleted role %q", roleName)
	return nil
}

func isNoSuchEntity(err error) bool {
	var notFound *iamtypes.NoSuchEntityException
	return errors.As(err, &notFound)
}
