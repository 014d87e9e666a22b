package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/souschef/souschef/internal/logging"
)

// NetworkAPI is the subset of the EC2 API the network manager uses
type NetworkAPI interface {
	CreateVpc(ctx context.Context, params *ec2.CreateVpcInput, optFns ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error)
	ModifyVpcAttribute(ctx context.Context, params *ec2.ModifyVpcAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error)
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DeleteVpc(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error)
	CreateSubnet(ctx context.Context, params *ec2.CreateSubnetInput, optFns ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error)
	ModifySubnetAttribute(ctx context.Context, params *ec2.ModifySubnetAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DeleteSubnet(ctx context.Context, params *ec2.DeleteSubnetInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error)
	CreateInternetGateway(ctx context.Context, params *ec2.CreateInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error)
	AttachInternetGateway(ctx context.Context, params *ec2.AttachInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error)
	DescribeInternetGateways(ctx context.Context, params *ec2.DescribeInternetGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error)
	DetachInternetGateway(ctx context.Context, params *ec2.DetachInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error)
	DeleteInternetGateway(ctx context.Context, params *ec2.DeleteInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error)
	CreateRouteTable(ctx context.Context, params *ec2.CreateRouteTableInput, optFns ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error)
	CreateRoute(ctx context.Context, params *ec2.CreateRouteInput, optFns ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error)
	AssociateRouteTable(ctx context.Context, params *ec2.AssociateRouteTableInput, optFns ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error)
	DescribeRouteTables(ctx context.Context, params *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error)
	DeleteRouteTable(ctx context.Context, params *ec2.DeleteRouteTableInput, optFns ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error)
}

// NetworkManager provisions and tears down the isolated network: VPC,
// subnet, internet gateway, and route table.
type NetworkManager struct {
	api    NetworkAPI
	logger *logging.Logger
}

var _ Lifecycle = (*NetworkManager)(nil)

// NewNetworkManager creates a network manager backed by the given EC2 API
func NewNetworkManager(api NetworkAPI) *NetworkManager {
	return &NetworkManager{
		api:    api,
		logger: logging.NewLogger("network"),
	}
}

func nameTagSpec(resourceType ec2types.ResourceType, spec Spec) []ec2types.TagSpecification {
	tags := []ec2types.Tag{
		{Key: aws.String("Name"), Value: aws.String(spec.Name)},
	}
	for k, v := range spec.Tags {
		tags = append(tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return []ec2types.TagSpecification{
		{ResourceType: resourceType, Tags: tags},
	}
}

// CreateVPC creates a tagged VPC with DNS support enabled, returning its id.
// If a VPC with the same Name tag already exists the call is a no-op that
// returns the existing id.
func (m *NetworkManager) CreateVPC(ctx context.Context, name, cidr string) (string, error) {
	if existing, err := m.FindVPCByName(ctx, name); err == nil {
		m.logger.Infof("vpc %q already exists (%s), skipping create", name, existing)
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	out, err := m.api.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(cidr),
		TagSpecifications: nameTagSpec(ec2types.ResourceTypeVpc, Spec{Kind: "vpc", Name: name}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create vpc %q: %w", name, err)
	}
	vpcID := aws.ToString(out.Vpc.VpcId)

	// Instances need DNS hostnames for the public-IP SSH flow
	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(vpcID), EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(vpcID), EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := m.api.ModifyVpcAttribute(ctx, attr); err != nil {
			return "", fmt.Errorf("failed to modify vpc attribute: %w", err)
		}
	}

	m.logger.Infof("created vpc %q (%s)", name, vpcID)
	return vpcID, nil
}

// FindVPCByName resolves a VPC id by its Name tag
func (m *NetworkManager) FindVPCByName(ctx context.Context, name string) (string, error) {
	out, err := m.api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe vpcs: %w", err)
	}
	if len(out.Vpcs) == 0 {
		return "", ErrNotFound
	}
	return aws.ToString(out.Vpcs[0].VpcId), nil
}

// Describe reports the status of the VPC with the given Name tag
func (m *NetworkManager) Describe(ctx context.Context, name string) (Status, error) {
	out, err := m.api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
		},
	})
	if err != nil {
		return StatusFailed, fmt.Errorf("failed to describe vpcs: %w", err)
	}
	if len(out.Vpcs) == 0 {
		return StatusDeleted, nil
	}
	switch out.Vpcs[0].State {
	case ec2types.VpcStateAvailable:
		return StatusActive, nil
	case ec2types.VpcStatePending:
		return StatusCreating, nil
	default:
		return StatusPending, nil
	}
}

// DeleteVPC removes the VPC by id
func (m *NetworkManager) DeleteVPC(ctx context.Context, vpcID string) error {
	if _, err := m.api.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)}); err != nil {
		return fmt.Errorf("failed to delete vpc %s: %w", vpcID, err)
	}
	m.logger.Infof("deleted vpc %s", vpcID)
	return nil
}

// Delete removes the VPC resolved by its Name tag
func (m *NetworkManager) Delete(ctx context.Context, name string) error {
	vpcID, err := m.FindVPCByName(ctx, name)
	if err != nil {
		return err
	}
	return m.DeleteVPC(ctx, vpcID)
}

// CreateSubnet creates a public subnet in the VPC, reusing one with the same
// Name tag if it exists
func (m *NetworkManager) CreateSubnet(ctx context.Context, vpcID, name, cidr string) (string, error) {
	if existing, err := m.FindSubnetByName(ctx, name); err == nil {
		m.logger.Infof("subnet %q already exists (%s), skipping create", name, existing)
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	out, err := m.api.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             aws.String(vpcID),
		CidrBlock:         aws.String(cidr),
		TagSpecifications: nameTagSpec(ec2types.ResourceTypeSubnet, Spec{Kind: "subnet", Name: name}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create subnet %q: %w", name, err)
	}
	subnetID := aws.ToString(out.Subnet.SubnetId)

	_, err = m.api.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(subnetID),
		MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to enable public ip mapping on subnet: %w", err)
	}

	m.logger.Infof("created subnet %q (%s)", name, subnetID)
	return subnetID, nil
}

// FindSubnetByName resolves a subnet id by its Name tag
func (m *NetworkManager) FindSubnetByName(ctx context.Context, name string) (string, error) {
	out, err := m.api.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe subnets: %w", err)
	}
	if len(out.Subnets) == 0 {
		return "", ErrNotFound
	}
	return aws.ToString(out.Subnets[0].SubnetId), nil
}

// ListSubnets returns all subnet ids in a VPC
func (m *NetworkManager) ListSubnets(ctx context.Context, vpcID string) ([]string, error) {
	out, err := m.api.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnets: %w", err)
	}
	ids := make([]string, 0, len(out.Subnets))
	for _, subnet := range out.Subnets {
		ids = append(ids, aws.ToString(subnet.SubnetId))
	}
	return ids, nil
}

// DeleteSubnet removes a subnet by id
func (m *NetworkManager) DeleteSubnet(ctx context.Context, subnetID string) error {
	if _, err := m.api.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)}); err != nil {
		return fmt.Errorf("failed to delete subnet %s: %w", subnetID, err)
	}
	m.logger.Infof("deleted subnet %s", subnetID)
	return nil
}

// CreateInternetGateway creates an internet gateway and attaches it to the
// VPC, reusing an already-attached one if present
func (m *NetworkManager) CreateInternetGateway(ctx context.Context, vpcID, name string) (string, error) {
	if existing, err := m.FindInternetGateway(ctx, vpcID); err == nil {
		m.logger.Infof("internet gateway already attached to %s (%s), skipping create", vpcID, existing)
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	out, err := m.api.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: nameTagSpec(ec2types.ResourceTypeInternetGateway, Spec{Kind: "internet-gateway", Name: name}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := aws.ToString(out.InternetGateway.InternetGatewayId)

	_, err = m.api.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach internet gateway: %w", err)
	}

	m.logger.Infof("created internet gateway %s attached to %s", igwID, vpcID)
	return igwID, nil
}

// FindInternetGateway resolves the internet gateway attached to a VPC
func (m *NetworkManager) FindInternetGateway(ctx context.Context, vpcID string) (string, error) {
	out, err := m.api.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("attachment.vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe internet gateways: %w", err)
	}
	if len(out.InternetGateways) == 0 {
		return "", ErrNotFound
	}
	return aws.ToString(out.InternetGateways[0].InternetGatewayId), nil
}

// DeleteInternetGateway detaches the gateway from the VPC and deletes it
func (m *NetworkManager) DeleteInternetGateway(ctx context.Context, igwID, vpcID string) error {
	_, err := m.api.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("failed to detach internet gateway %s: %w", igwID, err)
	}
	if _, err := m.api.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
	}); err != nil {
		return fmt.Errorf("failed to delete internet gateway %s: %w", igwID, err)
	}
	m.logger.Infof("deleted internet gateway %s", igwID)
	return nil
}

// CreateRouteTable creates a route table with a default route through the
// gateway and associates it with the subnet
func (m *NetworkManager) CreateRouteTable(ctx context.Context, vpcID, subnetID, igwID, name string) (string, error) {
	out, err := m.api.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(vpcID),
		TagSpecifications: nameTagSpec(ec2types.ResourceTypeRouteTable, Spec{Kind: "route-table", Name: name}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := aws.ToString(out.RouteTable.RouteTableId)

	_, err = m.api.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(rtID),
		DestinationCidrBlock: aws.String("0.0.0.0/0"),
		GatewayId:            aws.String(igwID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create default route: %w", err)
	}

	_, err = m.api.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(rtID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to associate route table: %w", err)
	}

	m.logger.Infof("created route table %s for subnet %s", rtID, subnetID)
	return rtID, nil
}

// ListCustomRouteTables returns the non-main route tables of a VPC. The main
// table is deleted automatically with the VPC.
func (m *NetworkManager) ListCustomRouteTables(ctx context.Context, vpcID string) ([]string, error) {
	out, err := m.api.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe route tables: %w", err)
	}

	var ids []string
	for _, rt := range out.RouteTables {
		main := false
		for _, assoc := range rt.Associations {
			if aws.ToBool(assoc.Main) {
				main = true
				break
			}
		}
		if !main {
			ids = append(ids, aws.ToString(rt.RouteTableId))
		}
	}
	return ids, nil
}

// DeleteRouteTable removes a route table by id
func (m *NetworkManager) DeleteRouteTable(ctx context.Context, rtID string) error {
	if _, err := m.api.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(rtID)}); err != nil {
		return fmt.Errorf("failed to delete route table %s: %w", rtID, err)
	}
	m.logger.Infof("deleted route table %s", rtID)
	return nil
}
