// Package orchestrator sequences the provisioning and teardown of the ETL
// infrastructure. Provisioning runs a fixed ordered chain and aborts on the
// first failure; teardown sweeps the chain in reverse and keeps going past
// individual failures so it can be rerun against a half-built environment.
package orchestrator

import (
	"context"
	"time"

	"github.com/souschef/souschef/internal/awsclient"
	"github.com/souschef/souschef/internal/config"
	"github.com/souschef/souschef/internal/logging"
	"github.com/souschef/souschef/internal/resource"
)

// networkManager covers the VPC-family operations the orchestrators use
type networkManager interface {
	CreateVPC(ctx context.Context, name, cidr string) (string, error)
	FindVPCByName(ctx context.Context, name string) (string, error)
	DeleteVPC(ctx context.Context, vpcID string) error
	CreateSubnet(ctx context.Context, vpcID, name, cidr string) (string, error)
	ListSubnets(ctx context.Context, vpcID string) ([]string, error)
	DeleteSubnet(ctx context.Context, subnetID string) error
	CreateInternetGateway(ctx context.Context, vpcID, name string) (string, error)
	FindInternetGateway(ctx context.Context, vpcID string) (string, error)
	DeleteInternetGateway(ctx context.Context, igwID, vpcID string) error
	CreateRouteTable(ctx context.Context, vpcID, subnetID, igwID, name string) (string, error)
	ListCustomRouteTables(ctx context.Context, vpcID string) ([]string, error)
	DeleteRouteTable(ctx context.Context, rtID string) error
}

type securityGroupManager interface {
	Create(ctx context.Context, vpcID, name, description string) (string, error)
	Find(ctx context.Context, vpcID, name string) (string, error)
	Delete(ctx context.Context, groupID string) error
}

type identityManager interface {
	CreateRole(ctx context.Context, roleName, trustPolicy string) error
	AttachPolicy(ctx context.Context, roleName, policyArn string) error
	CreateInstanceProfile(ctx context.Context, profileName, roleName string) error
}

type keyPairManager interface {
	Create(ctx context.Context, name, keyPath string) error
	Delete(ctx context.Context, name string) error
}

type instanceManager interface {
	Launch(ctx context.Context, spec resource.LaunchSpec) (string, error)
	FindByName(ctx context.Context, name string) (string, error)
	PublicIP(ctx context.Context, instanceID string) (string, error)
	Terminate(ctx context.Context, instanceID string) error
	WaitTerminated(ctx context.Context, instanceID string, interval, timeout time.Duration) bool
}

type bucketManager interface {
	Create(ctx context.Context, bucket string) error
	Empty(ctx context.Context, bucket string) (int, error)
	Delete(ctx context.Context, bucket string) error
}

// Orchestrator drives provisioning and teardown runs over one set of
// resource managers
type Orchestrator struct {
	cfg      *config.Config
	network  networkManager
	secgroup securityGroupManager
	identity identityManager
	keypair  keyPairManager
	instance instanceManager
	bucket   bucketManager
	logger   *logging.Logger
	sleep    func(time.Duration)
}

// New creates an orchestrator over real AWS clients
func New(cfg *config.Config, clients *awsclient.Clients) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		network:  resource.NewNetworkManager(clients.EC2),
		secgroup: resource.NewSecurityGroupManager(clients.EC2),
		identity: resource.NewIdentityManager(clients.IAM),
		keypair:  resource.NewKeyPairManager(clients.EC2),
		instance: resource.NewInstanceManager(clients.EC2),
		bucket:   resource.NewBucketManager(clients.S3, cfg.Region),
		logger:   logging.NewLogger("orchestrator"),
		sleep:    time.Sleep,
	}
}
