package resource

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecurityGroupAPI struct {
	createErr    error
	ingressErr   error
	existing     []ec2types.SecurityGroup
	ingressCalls []*ec2.AuthorizeSecurityGroupIngressInput
	deleteCalls  int
}

func (f *fakeSecurityGroupAPI) CreateSecurityGroup(_ context.Context, _ *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String("sg-new")}, nil
}

func (f *fakeSecurityGroupAPI) AuthorizeSecurityGroupIngress(_ context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.ingressCalls = append(f.ingressCalls, params)
	if f.ingressErr != nil {
		return nil, f.ingressErr
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeSecurityGroupAPI) DescribeSecurityGroups(_ context.Context, _ *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.existing}, nil
}

func (f *fakeSecurityGroupAPI) DeleteSecurityGroup(_ context.Context, _ *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.deleteCalls++
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func TestSecurityGroupCreate_AuthorizesSSH(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeSecurityGroupAPI{}
	m := NewSecurityGroupManager(api)

	groupID, err := m.Create(context.Background(), "vpc-1", "etl-sg", "ETL access")
	require.NoError(t, err)
	assert.Equal(t, "sg-new", groupID)

	require.Len(t, api.ingressCalls, 1)
	perm := api.ingressCalls[0].IpPermissions[0]
	assert.Equal(t, "tcp", aws.ToString(perm.IpProtocol))
	assert.Equal(t, int32(22), aws.ToInt32(perm.FromPort))
	assert.Equal(t, "0.0.0.0/0", aws.ToString(perm.IpRanges[0].CidrIp))
}

func TestSecurityGroupCreate_DuplicateResolvesExisting(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeSecurityGroupAPI{
		createErr: &smithy.GenericAPIError{Code: "InvalidGroup.Duplicate"},
		existing:  []ec2types.SecurityGroup{{GroupId: aws.String("sg-existing")}},
	}
	m := NewSecurityGroupManager(api)

	groupID, err := m.Create(context.Background(), "vpc-1", "etl-sg", "ETL access")
	require.NoError(t, err)
	assert.Equal(t, "sg-existing", groupID)
}

func TestSecurityGroupCreate_DuplicateRuleTolerated(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeSecurityGroupAPI{
		ingressErr: &smithy.GenericAPIError{Code: "InvalidPermission.Duplicate"},
	}
	m := NewSecurityGroupManager(api)

	_, err := m.Create(context.Background(), "vpc-1", "etl-sg", "ETL access")
	require.NoError(t, err, "reauthorizing an existing rule is not a failure")
}

func TestSecurityGroupFind_NotFound(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	m := NewSecurityGroupManager(&fakeSecurityGroupAPI{})

	_, err := m.Find(context.Background(), "vpc-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
