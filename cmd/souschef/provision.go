//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/souschef/souschef/internal/awsclient"
	"github.com/souschef/souschef/internal/config"
	"github.com/souschef/souschef/internal/orchestrator"
)

func provisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Provision the full ETL environment",
		Long: `Provision creates the ETL environment in dependency order: VPC, subnet,
internet gateway, route table, security group, buckets, IAM role and
instance profile, key pair, and the ETL instance.

The run stops at the first failure without rolling back; run teardown to
clean up a partial environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, clients, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			result, err := orchestrator.New(cfg, clients).Provision(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Instance %s is up at %s\n", result.InstanceID, result.PublicIP)
			fmt.Printf("Connect with: ssh -i %s ec2-user@%s\n", cfg.KeyPairPath, result.PublicIP)
			return nil
		},
	}
}

// setup loads config and builds real AWS clients, shared by all subcommands
func setup(ctx context.Context) (*config.Config, *awsclient.Clients, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	clients, err := awsclient.New(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("create AWS clients: %w", err)
	}
	return cfg, clients, nil
}
