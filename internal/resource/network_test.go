package resource

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetworkAPI struct {
	vpcs        []ec2types.Vpc
	createCalls int
	routeInputs []*ec2.CreateRouteInput
	assocInputs []*ec2.AssociateRouteTableInput
	routeTables []ec2types.RouteTable
}

func (f *fakeNetworkAPI) CreateVpc(_ context.Context, _ *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.createCalls++
	return &ec2.CreateVpcOutput{Vpc: &ec2types.Vpc{VpcId: aws.String("vpc-new")}}, nil
}

func (f *fakeNetworkAPI) ModifyVpcAttribute(_ context.Context, _ *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	return &ec2.ModifyVpcAttributeOutput{}, nil
}

func (f *fakeNetworkAPI) DescribeVpcs(_ context.Context, _ *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	return &ec2.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}

func (f *fakeNetworkAPI) DeleteVpc(_ context.Context, _ *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *fakeNetworkAPI) CreateSubnet(_ context.Context, _ *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	return &ec2.CreateSubnetOutput{Subnet: &ec2types.Subnet{SubnetId: aws.String("subnet-new")}}, nil
}

func (f *fakeNetworkAPI) ModifySubnetAttribute(_ context.Context, _ *ec2.ModifySubnetAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error) {
	return &ec2.ModifySubnetAttributeOutput{}, nil
}

func (f *fakeNetworkAPI) DescribeSubnets(_ context.Context, _ *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	return &ec2.DescribeSubnetsOutput{}, nil
}

func (f *fakeNetworkAPI) DeleteSubnet(_ context.Context, _ *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *fakeNetworkAPI) CreateInternetGateway(_ context.Context, _ *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	return &ec2.CreateInternetGatewayOutput{
		InternetGateway: &ec2types.InternetGateway{InternetGatewayId: aws.String("igw-new")},
	}, nil
}

func (f *fakeNetworkAPI) AttachInternetGateway(_ context.Context, _ *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	return &ec2.AttachInternetGatewayOutput{}, nil
}

func (f *fakeNetworkAPI) DescribeInternetGateways(_ context.Context, _ *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	return &ec2.DescribeInternetGatewaysOutput{}, nil
}

func (f *fakeNetworkAPI) DetachInternetGateway(_ context.Context, _ *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *fakeNetworkAPI) DeleteInternetGateway(_ context.Context, _ *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (f *fakeNetworkAPI) CreateRouteTable(_ context.Context, _ *ec2.CreateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error) {
	return &ec2.CreateRouteTableOutput{
		RouteTable: &ec2types.RouteTable{RouteTableId: aws.String("rtb-new")},
	}, nil
}

func (f *fakeNetworkAPI) CreateRoute(_ context.Context, params *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.routeInputs = append(f.routeInputs, params)
	return &ec2.CreateRouteOutput{}, nil
}

func (f *fakeNetworkAPI) AssociateRouteTable(_ context.Context, params *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	f.assocInputs = append(f.assocInputs, params)
	return &ec2.AssociateRouteTableOutput{}, nil
}

func (f *fakeNetworkAPI) DescribeRouteTables(_ context.Context, _ *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	return &ec2.DescribeRouteTablesOutput{RouteTables: f.routeTables}, nil
}

func (f *fakeNetworkAPI) DeleteRouteTable(_ context.Context, _ *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	return &ec2.DeleteRouteTableOutput{}, nil
}

func TestCreateVPC_ReusesExistingByNameTag(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeNetworkAPI{vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-existing")}}}
	m := NewNetworkManager(api)

	vpcID, err := m.CreateVPC(context.Background(), "etl-vpc", "10.0.0.0/16")
	require.NoError(t, err)
	assert.Equal(t, "vpc-existing", vpcID)
	assert.Zero(t, api.createCalls, "an existing vpc short-circuits the create")
}

func TestCreateVPC_New(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeNetworkAPI{}
	m := NewNetworkManager(api)

	vpcID, err := m.CreateVPC(context.Background(), "etl-vpc", "10.0.0.0/16")
	require.NoError(t, err)
	assert.Equal(t, "vpc-new", vpcID)
	assert.Equal(t, 1, api.createCalls)
}

func TestCreateRouteTable_DefaultRouteAndAssociation(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeNetworkAPI{}
	m := NewNetworkManager(api)

	rtID, err := m.CreateRouteTable(context.Background(), "vpc-1", "subnet-1", "igw-1", "etl-rt")
	require.NoError(t, err)
	assert.Equal(t, "rtb-new", rtID)

	require.Len(t, api.routeInputs, 1)
	assert.Equal(t, "0.0.0.0/0", aws.ToString(api.routeInputs[0].DestinationCidrBlock))
	assert.Equal(t, "igw-1", aws.ToString(api.routeInputs[0].GatewayId))

	require.Len(t, api.assocInputs, 1)
	assert.Equal(t, "subnet-1", aws.ToString(api.assocInputs[0].SubnetId))
}

func TestListCustomRouteTables_SkipsMain(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeNetworkAPI{routeTables: []ec2types.RouteTable{
		{
			RouteTableId: aws.String("rtb-main"),
			Associations: []ec2types.RouteTableAssociation{{Main: aws.Bool(true)}},
		},
		{
			RouteTableId: aws.String("rtb-custom"),
			Associations: []ec2types.RouteTableAssociation{{Main: aws.Bool(false)}},
		},
	}}
	m := NewNetworkManager(api)

	ids, err := m.ListCustomRouteTables(context.Background(), "vpc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rtb-custom"}, ids, "the main route table belongs to the vpc, not us")
}

func TestNetworkDescribe_NotFound(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	m := NewNetworkManager(&fakeNetworkAPI{})

	status, err := m.Describe(context.Background(), "etl-vpc")
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, status)
}
