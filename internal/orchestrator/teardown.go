package orchestrator

import (
	"context"
	"errors"
	"os"

	"github.com/souschef/souschef/internal/resource"
)

// Teardown dismantles the environment in reverse dependency order. Every
// lookup tolerates a missing resource and every failure is counted rather
// than fatal, so the sweep can be rerun against a partially torn-down or
// never-fully-provisioned environment. The recipes table and the clean
// bucket are deliberately left standing.
func (o *Orchestrator) Teardown(ctx context.Context) int {
	failures := 0

	o.tearDownInstance(ctx, &failures)
	o.tearDownKeyPair(ctx, &failures)
	o.tearDownRawBucket(ctx, &failures)
	o.tearDownNetwork(ctx, &failures)

	if failures > 0 {
		o.logger.Warnf("teardown finished with %d failed steps", failures)
	} else {
		o.logger.Infof("teardown complete")
	}
	return failures
}

func (o *Orchestrator) tearDownInstance(ctx context.Context, failures *int) {
	id, err := o.instance.FindByName(ctx, o.cfg.InstanceName)
	if errors.Is(err, resource.ErrNotFound) {
		o.logger.ResourceStepSkipped("instance", o.cfg.InstanceName)
		return
	}
	if err != nil {
		o.logger.ResourceStepFailed("instance", o.cfg.InstanceName, err)
		*failures++
		return
	}
	if err := o.instance.Terminate(ctx, id); err != nil {
		o.logger.ResourceStepFailed("instance", o.cfg.InstanceName, err)
		*failures++
		return
	}
	// Later network deletes fail while the instance still holds ENIs, so
	// block until it is gone.
	if !o.instance.WaitTerminated(ctx, id, o.cfg.PollInterval, o.cfg.TerminateTimeout) {
		o.logger.ResourceStepFailed("instance", o.cfg.InstanceName, errors.New("timed out waiting for termination"))
		*failures++
		return
	}
	o.logger.ResourceStepSuccess("instance", o.cfg.InstanceName)
}

func (o *Orchestrator) tearDownKeyPair(ctx context.Context, failures *int) {
	err := o.keypair.Delete(ctx, o.cfg.KeyPairName)
	switch {
	case errors.Is(err, resource.ErrNotFound):
		o.logger.ResourceStepSkipped("key pair", o.cfg.KeyPairName)
	case err != nil:
		o.logger.ResourceStepFailed("key pair", o.cfg.KeyPairName, err)
		*failures++
	default:
		o.logger.ResourceStepSuccess("key pair", o.cfg.KeyPairName)
	}
	if rmErr := os.Remove(o.cfg.KeyPairPath); rmErr != nil && !os.IsNotExist(rmErr) {
		o.logger.Warnf("could not remove local key file %s: %v", o.cfg.KeyPairPath, rmErr)
	}
}

func (o *Orchestrator) tearDownRawBucket(ctx context.Context, failures *int) {
	deleted, err := o.bucket.Empty(ctx, o.cfg.RawBucket)
	if errors.Is(err, resource.ErrNotFound) {
		o.logger.ResourceStepSkipped("bucket", o.cfg.RawBucket)
		return
	}
	if err != nil {
		o.logger.ResourceStepFailed("bucket", o.cfg.RawBucket, err)
		*failures++
		return
	}
	o.logger.Debugf("removed %d objects from %s", deleted, o.cfg.RawBucket)
	if err := o.bucket.Delete(ctx, o.cfg.RawBucket); err != nil && !errors.Is(err, resource.ErrNotFound) {
		o.logger.ResourceStepFailed("bucket", o.cfg.RawBucket, err)
		*failures++
		return
	}
	o.logger.ResourceStepSuccess("bucket", o.cfg.RawBucket)
}

func (o *Orchestrator) tearDownNetwork(ctx context.Context, failures *int) {
	vpcID, err := o.network.FindVPCByName(ctx, o.cfg.VPCName)
	if errors.Is(err, resource.ErrNotFound) {
		o.logger.ResourceStepSkipped("vpc", o.cfg.VPCName)
		return
	}
	if err != nil {
		o.logger.ResourceStepFailed("vpc", o.cfg.VPCName, err)
		*failures++
		return
	}

	if groupID, err := o.secgroup.Find(ctx, vpcID, o.cfg.SecurityGroupName); err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			o.logger.ResourceStepSkipped("security group", o.cfg.SecurityGroupName)
		} else {
			o.logger.ResourceStepFailed("security group", o.cfg.SecurityGroupName, err)
			*failures++
		}
	} else if err := o.secgroup.Delete(ctx, groupID); err != nil {
		o.logger.ResourceStepFailed("security group", o.cfg.SecurityGroupName, err)
		*failures++
	} else {
		o.logger.ResourceStepSuccess("security group", o.cfg.SecurityGroupName)
	}

	subnets, err := o.network.ListSubnets(ctx, vpcID)
	if err != nil {
		o.logger.ResourceStepFailed("subnets", vpcID, err)
		*failures++
	}
	for _, subnetID := range subnets {
		if err := o.network.DeleteSubnet(ctx, subnetID); err != nil {
			o.logger.ResourceStepFailed("subnet", subnetID, err)
			*failures++
		} else {
			o.logger.ResourceStepSuccess("subnet", subnetID)
		}
	}

	routeTables, err := o.network.ListCustomRouteTables(ctx, vpcID)
	if err != nil {
		o.logger.ResourceStepFailed("route tables", vpcID, err)
		*failures++
	}
	for _, rtID := range routeTables {
		if err := o.network.DeleteRouteTable(ctx, rtID); err != nil {
			o.logger.ResourceStepFailed("route table", rtID, err)
			*failures++
		} else {
			o.logger.ResourceStepSuccess("route table", rtID)
		}
	}

	if igwID, err := o.network.FindInternetGateway(ctx, vpcID); err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			o.logger.ResourceStepSkipped("internet gateway", vpcID)
		} else {
			o.logger.ResourceStepFailed("internet gateway", vpcID, err)
			*failures++
		}
	} else if err := o.network.DeleteInternetGateway(ctx, igwID, vpcID); err != nil {
		o.logger.ResourceStepFailed("internet gateway", igwID, err)
		*failures++
	} else {
		o.logger.ResourceStepSuccess("internet gateway", igwID)
	}

	if err := o.network.DeleteVPC(ctx, vpcID); err != nil {
		o.logger.ResourceStepFailed("vpc", o.cfg.VPCName, err)
		*failures++
	} else {
		o.logger.ResourceStepSuccess("vpc", o.cfg.VPCName)
	}
}
