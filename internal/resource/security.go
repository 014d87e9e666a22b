package resource

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/souschef/souschef/internal/logging"
)

const (
	sgDuplicateCode     = "InvalidGroup.Duplicate"
	sgRuleDuplicateCode = "InvalidPermission.Duplicate"
)

// SecurityGroupAPI is the subset of the EC2 API the security group manager uses
type SecurityGroupAPI interface {
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
}

// SecurityGroupManager provisions the security group guarding the ETL
// instance: all egress (the VPC default) plus inbound SSH.
type SecurityGroupManager struct {
	api    SecurityGroupAPI
	logger *logging.Logger
}

// NewSecurityGroupManager creates a security group manager backed by the given EC2 API
func NewSecurityGroupManager(api SecurityGroupAPI) *SecurityGroupManager {
	return &SecurityGroupManager{
		api:    api,
		logger: logging.NewLogger("security"),
	}
}

// Create creates the group in the VPC and authorizes inbound SSH. A
// duplicate group name resolves to the existing group id and is success.
func (m *SecurityGroupManager) Create(ctx context.Context, vpcID, name, description string) (string, error) {
	var groupID string

	out, err := m.api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String(description),
		VpcId:             aws.String(vpcID),
		TagSpecifications: nameTagSpec(ec2types.ResourceTypeSecurityGroup, Spec{Kind: "security-group", Name: name}),
	})
	switch {
	case err == nil:
		groupID = aws.ToString(out.GroupId)
		m.logger.Infof("created security group %q (%s)", name, groupID)
	case errorCode(err) == sgDuplicateCode:
		existing, findErr := m.Find(ctx, vpcID, name)
		if findErr != nil {
			return "", findErr
		}
		groupID = existing
		m.logger.Infof("security group %q already exists (%s), skipping create", name, groupID)
	default:
		return "", fmt.Errorf("failed to create security group %q: %w", name, err)
	}

	if err := m.authorizeSSH(ctx, groupID); err != nil {
		return "", err
	}
	return groupID, nil
}

// authorizeSSH opens tcp/22 from anywhere. Egress allow-all is implicit on
// new groups so only ingress needs a rule.
func (m *SecurityGroupManager) authorizeSSH(ctx context.Context, groupID string) error {
	_, err := m.api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(22),
				ToPort:     aws.Int32(22),
				IpRanges: []ec2types.IpRange{
					{CidrIp: aws.String("0.0.0.0/0"), Description: aws.String("SSH")},
				},
			},
		},
	})
	if err != nil && errorCode(err) != sgRuleDuplicateCode {
		return fmt.Errorf("failed to authorize ssh ingress on %s: %w", groupID, err)
	}
	return nil
}

// Find resolves a security group id by group name within a VPC
func (m *SecurityGroupManager) Find(ctx context.Context, vpcID, name string) (string, error) {
	out, err := m.api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("group-name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe security groups: %w", err)
	}
	if len(out.SecurityGroups) == 0 {
		return "", ErrNotFound
	}
	return aws.ToString(out.SecurityGroups[0].GroupId), nil
}

// Delete removes a security group by id
func (m *SecurityGroupManager) Delete(ctx context.Context, groupID string) error {
	if _, err := m.api.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(groupID)}); err != nil {
		return fmt.Errorf("failed to delete security group %s: %w", groupID, err)
	}
	m.logger.Infof("deleted security group %s", groupID)
	return nil
}
