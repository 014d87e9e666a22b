package orchestrator

import (
	"context"
	"fmt"

	"github.com/souschef/souschef/internal/resource"
)

// step is one link in the provisioning chain. Apply mutates the run state
// with the ids later steps depend on.
type step struct {
	name  string
	apply func(ctx context.Context, st *provisionState) error
}

// provisionState accumulates the ids produced by earlier steps
type provisionState struct {
	vpcID        string
	subnetID     string
	igwID        string
	routeTableID string
	groupID      string
	instanceID   string
	publicIP     string

	created []resource.Handle
}

func (st *provisionState) record(kind, id string) {
	st.created = append(st.created, resource.Handle{Kind: kind, ID: id, Status: resource.StatusActive})
}

// ProvisionResult reports what a successful run produced. Created holds the
// id-bearing resources in creation order; teardown never needs it, resources
// are re-resolved by name.
type ProvisionResult struct {
	InstanceID string
	PublicIP   string
	Created    []resource.Handle
}

// Provision builds the full ETL environment in dependency order. The first
// failing step aborts the run; nothing already created is rolled back, the
// operator runs teardown instead.
func (o *Orchestrator) Provision(ctx context.Context) (*ProvisionResult, error) {
	steps := o.provisionSteps()
	st := &provisionState{}

	for i, s := range steps {
		o.logger.ResourceStepStart(s.name, o.cfg.VPCName, i+1, len(steps))
		if err := s.apply(ctx, st); err != nil {
			o.logger.ResourceStepFailed(s.name, o.cfg.VPCName, err)
			return nil, fmt.Errorf("provision step %q: %w", s.name, err)
		}
	}

	o.logger.Infof("environment ready, connect with: ssh -i %s ec2-user@%s", o.cfg.KeyPairPath, st.publicIP)
	return &ProvisionResult{InstanceID: st.instanceID, PublicIP: st.publicIP, Created: st.created}, nil
}

func (o *Orchestrator) provisionSteps() []step {
	cfg := o.cfg
	return []step{
		{"vpc", func(ctx context.Context, st *provisionState) error {
			id, err := o.network.CreateVPC(ctx, cfg.VPCName, cfg.VPCCIDR)
			if err != nil {
				return err
			}
			st.vpcID = id
			st.record("vpc", id)
			return nil
		}},
		{"subnet", func(ctx context.Context, st *provisionState) error {
			id, err := o.network.CreateSubnet(ctx, st.vpcID, cfg.SubnetName, cfg.SubnetCIDR)
			if err != nil {
				return err
			}
			st.subnetID = id
			st.record("subnet", id)
			return nil
		}},
		{"internet gateway", func(ctx context.Context, st *provisionState) error {
			id, err := o.network.CreateInternetGateway(ctx, st.vpcID, cfg.VPCName+"-igw")
			if err != nil {
				return err
			}
			st.igwID = id
			st.record("internet-gateway", id)
			return nil
		}},
		{"route table", func(ctx context.Context, st *provisionState) error {
			id, err := o.network.CreateRouteTable(ctx, st.vpcID, st.subnetID, st.igwID, cfg.VPCName+"-rt")
			if err != nil {
				return err
			}
			st.routeTableID = id
			st.record("route-table", id)
			return nil
		}},
		{"security group", func(ctx context.Context, st *provisionState) error {
			id, err := o.secgroup.Create(ctx, st.vpcID, cfg.SecurityGroupName, cfg.SecurityGroupDesc)
			if err != nil {
				return err
			}
			st.groupID = id
			st.record("security-group", id)
			return nil
		}},
		{"raw bucket", func(ctx context.Context, _ *provisionState) error {
			return o.bucket.Create(ctx, cfg.RawBucket)
		}},
		{"clean bucket", func(ctx context.Context, _ *provisionState) error {
			return o.bucket.Create(ctx, cfg.CleanBucket)
		}},
		{"iam role", func(ctx context.Context, _ *provisionState) error {
			if err := o.identity.CreateRole(ctx, cfg.RoleName, resource.EC2TrustPolicy); err != nil {
				return err
			}
			for _, arn := range cfg.ManagedPolicies {
				if err := o.identity.AttachPolicy(ctx, cfg.RoleName, arn); err != nil {
					return err
				}
			}
			return nil
		}},
		{"instance profile", func(ctx context.Context, _ *provisionState) error {
			return o.identity.CreateInstanceProfile(ctx, cfg.ProfileName, cfg.RoleName)
		}},
		{"identity propagation", func(_ context.Context, _ *provisionState) error {
			// The IAM API gives no way to observe propagation, so this is a
			// blind wait. Launching too early fails with an invalid profile.
			o.logger.Infof("waiting %s for IAM propagation", cfg.IdentityPropagationDelay)
			o.sleep(cfg.IdentityPropagationDelay)
			return nil
		}},
		{"key pair", func(ctx context.Context, _ *provisionState) error {
			return o.keypair.Create(ctx, cfg.KeyPairName, cfg.KeyPairPath)
		}},
		{"instance", func(ctx context.Context, st *provisionState) error {
			id, err := o.instance.Launch(ctx, resource.LaunchSpec{
				Name:            cfg.InstanceName,
				ImageID:         cfg.ImageID,
				InstanceType:    cfg.InstanceType,
				SubnetID:        st.subnetID,
				KeyName:         cfg.KeyPairName,
				SecurityGroups:  []string{st.groupID},
				InstanceProfile: cfg.ProfileName,
				UserData:        cfg.UserData,
			})
			if err != nil {
				return err
			}
			st.instanceID = id
			st.record("instance", id)
			return nil
		}},
		{"public ip", func(ctx context.Context, st *provisionState) error {
			o.logger.Infof("waiting %s for public IP assignment", cfg.PublicIPDelay)
			o.sleep(cfg.PublicIPDelay)
			ip, err := o.instance.PublicIP(ctx, st.instanceID)
			st.publicIP = ip
			return err
		}},
	}
}
