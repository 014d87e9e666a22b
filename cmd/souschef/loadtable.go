//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/souschef/souschef/internal/loader"
)

func loadTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-table",
		Short: "Create the recipes table and bulk-load it from the clean bucket",
		Long: `Load-table attaches the table access policy to the ETL role, creates the
recipes table if needed, waits for it to become active, and loads every
recipe object from the clean bucket into it in batches.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, clients, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			result, err := loader.New(cfg, clients).Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Uploaded %d, failed %d\n", result.Written, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d records failed to load", result.Failed)
			}
			return nil
		},
	}
}
