package resource

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentityAPI struct {
	createRoleErr    error
	attachErr        error
	createProfileErr error
	addRoleErr       error
	attachedPolicies []iamtypes.AttachedPolicy
	detached         []string
	deletedRoles     []string
}

func (f *fakeIdentityAPI) CreateRole(_ context.Context, _ *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if f.createRoleErr != nil {
		return nil, f.createRoleErr
	}
	return &iam.CreateRoleOutput{}, nil
}

func (f *fakeIdentityAPI) GetRole(_ context.Context, params *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	return &iam.GetRoleOutput{Role: &iamtypes.Role{
		Arn: aws.String("arn:aws:iam::123456789012:role/" + aws.ToString(params.RoleName)),
	}}, nil
}

func (f *fakeIdentityAPI) AttachRolePolicy(_ context.Context, _ *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIdentityAPI) DetachRolePolicy(_ context.Context, params *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	f.detached = append(f.detached, aws.ToString(params.PolicyArn))
	return &iam.DetachRolePolicyOutput{}, nil
}

func (f *fakeIdentityAPI) ListAttachedRolePolicies(_ context.Context, _ *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	return &iam.ListAttachedRolePoliciesOutput{AttachedPolicies: f.attachedPolicies}, nil
}

func (f *fakeIdentityAPI) DeleteRole(_ context.Context, params *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.deletedRoles = append(f.deletedRoles, aws.ToString(params.RoleName))
	return &iam.DeleteRoleOutput{}, nil
}

func (f *fakeIdentityAPI) CreateInstanceProfile(_ context.Context, _ *iam.CreateInstanceProfileInput, _ ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error) {
	if f.createProfileErr != nil {
		return nil, f.createProfileErr
	}
	return &iam.CreateInstanceProfileOutput{}, nil
}

func (f *fakeIdentityAPI) GetInstanceProfile(_ context.Context, _ *iam.GetInstanceProfileInput, _ ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error) {
	return &iam.GetInstanceProfileOutput{}, nil
}

func (f *fakeIdentityAPI) AddRoleToInstanceProfile(_ context.Context, _ *iam.AddRoleToInstanceProfileInput, _ ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error) {
	if f.addRoleErr != nil {
		return nil, f.addRoleErr
	}
	return &iam.AddRoleToInstanceProfileOutput{}, nil
}

func (f *fakeIdentityAPI) RemoveRoleFromInstanceProfile(_ context.Context, _ *iam.RemoveRoleFromInstanceProfileInput, _ ...func(*iam.Options)) (*iam.RemoveRoleFromInstanceProfileOutput, error) {
	return &iam.RemoveRoleFromInstanceProfileOutput{}, nil
}

func (f *fakeIdentityAPI) DeleteInstanceProfile(_ context.Context, _ *iam.DeleteInstanceProfileInput, _ ...func(*iam.Options)) (*iam.DeleteInstanceProfileOutput, error) {
	return &iam.DeleteInstanceProfileOutput{}, nil
}

func TestCreateRole_AlreadyExistsIsSuccess(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeIdentityAPI{createRoleErr: &iamtypes.EntityAlreadyExistsException{}}
	m := NewIdentityManager(api)

	require.NoError(t, m.CreateRole(context.Background(), "etl-role", EC2TrustPolicy))
}

func TestAttachPolicy_LimitExceededIsSuccess(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeIdentityAPI{attachErr: &iamtypes.LimitExceededException{}}
	m := NewIdentityManager(api)

	require.NoError(t, m.AttachPolicy(context.Background(), "etl-role", "arn:aws:iam::aws:policy/AmazonS3FullAccess"))
}

func TestCreateInstanceProfile_ExistingProfileAndBinding(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeIdentityAPI{
		createProfileErr: &iamtypes.EntityAlreadyExistsException{},
		addRoleErr:       &iamtypes.LimitExceededException{},
	}
	m := NewIdentityManager(api)

	require.NoError(t, m.CreateInstanceProfile(context.Background(), "etl-profile", "etl-role"))
}

func TestDeleteRole_DetachesPoliciesFirst(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeIdentityAPI{
		attachedPolicies: []iamtypes.AttachedPolicy{
			{PolicyArn: aws.String("arn:aws:iam::aws:policy/AmazonS3FullAccess")},
			{PolicyArn: aws.String("arn:aws:iam::aws:policy/AmazonDynamoDBFullAccess")},
		},
	}
	m := NewIdentityManager(api)

	require.NoError(t, m.DeleteRole(context.Background(), "etl-role"))
	assert.Len(t, api.detached, 2, "every attached policy is detached before the delete")
	assert.Equal(t, []string{"etl-role"}, api.deletedRoles)
}

func TestRoleARN(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	m := NewIdentityManager(&fakeIdentityAPI{})

	arn, err := m.RoleARN(context.Background(), "etl-role")
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:role/etl-role", arn)
}
