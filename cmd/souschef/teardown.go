//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/souschef/souschef/internal/orchestrator"
)

func teardownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teardown",
		Short: "Tear down the ETL environment",
		Long: `Teardown dismantles the environment in reverse order: the ETL instance,
key pair, raw bucket, and the VPC with everything inside it. The clean
bucket and the recipes table are kept.

The sweep is safe to rerun; missing resources are skipped and individual
failures are reported without stopping the rest of the sweep.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, clients, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			if failures := orchestrator.New(cfg, clients).Teardown(cmd.Context()); failures > 0 {
				return fmt.Errorf("teardown finished with %d failed steps", failures)
			}
			fmt.Println("Teardown complete")
			return nil
		},
	}
}
